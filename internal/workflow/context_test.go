package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ferry/internal/config"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "report.csv", want: "report.csv"},
		{path: "/tmp/report.csv", want: "report.csv"},
		{path: "a/b/c/report.csv", want: "report.csv"},
		{path: "a//b///report.csv", want: "report.csv"},
		{path: "./notes", want: "notes"},
		{path: "archive.tar.gz", want: "archive.tar.gz"},
		{path: "", wantErr: true},
		{path: ".", wantErr: true},
		{path: "..", wantErr: true},
		{path: "/", wantErr: true},
		{path: "///", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ObjectKey(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRunContext(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Bucket = "my-bucket"
	cfg.Storage.PublicRead = false
	cfg.Queue.Name = "my-queue"
	cfg.Queue.Create = false

	rc, err := NewRunContext("/data/upload.bin", cfg)
	require.NoError(t, err)

	assert.Equal(t, "/data/upload.bin", rc.FilePath)
	assert.Equal(t, "upload.bin", rc.Key)
	assert.Equal(t, "my-bucket", rc.Bucket)
	assert.Equal(t, "my-queue", rc.QueueName)
	assert.Empty(t, rc.QueueURL)
	assert.False(t, rc.PublicRead)
	assert.True(t, rc.CreateBucket)
	assert.False(t, rc.CreateQueue)
}

func TestNewRunContext_BadPath(t *testing.T) {
	_, err := NewRunContext(".", config.Default())
	assert.Error(t, err)
}

func TestResult_Err(t *testing.T) {
	res := &Result{Steps: []StepResult{
		{Name: StepUpload, Severity: Fatal},
		{Name: StepReport, Severity: BestEffort, Err: assert.AnError},
	}}
	assert.False(t, res.Failed())
	assert.NoError(t, res.Err())

	res.Steps = append(res.Steps, StepResult{Name: StepManager, Severity: Recoverable, Err: assert.AnError})
	assert.True(t, res.Failed())
	assert.ErrorIs(t, res.Err(), assert.AnError)
	assert.ErrorContains(t, res.Err(), "manager:")
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "recoverable", Recoverable.String())
	assert.Equal(t, "best_effort", BestEffort.String())
	assert.Equal(t, "severity(9)", Severity(9).String())
}
