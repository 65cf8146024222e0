package application

import (
	"context"
	"errors"
	"testing"

	"evocoder/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exporterFunc func(ctx context.Context, project *models.Project) (string, error)

func (f exporterFunc) Export(ctx context.Context, project *models.Project) (string, error) {
	return f(ctx, project)
}

func TestExportService(t *testing.T) {
	svc := NewExportService()
	svc.Register("zip", exporterFunc(func(_ context.Context, p *models.Project) (string, error) {
		return "/tmp/" + p.ID + ".zip", nil
	}))
	svc.Register("s3", exporterFunc(func(context.Context, *models.Project) (string, error) {
		return "", errors.New("bucket unavailable")
	}))
	assert.Equal(t, []string{"s3", "zip"}, svc.Targets())

	project := &models.Project{ID: "p1"}
	loc, err := svc.Export(context.Background(), "zip", project)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/p1.zip", loc)

	_, err = svc.Export(context.Background(), "s3", project)
	assert.EqualError(t, err, "bucket unavailable")

	_, err = svc.Export(context.Background(), "ftp", project)
	assert.ErrorIs(t, err, ErrUnknownTarget)
}
