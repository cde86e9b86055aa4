// Ferry uploads a file to S3, notifies the manager over SQS, and keeps the manager instance running.
package main

func main() {
	Execute()
}
