package errors

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhancedErrorWrapping(t *testing.T) {
	t.Parallel()

	base := NewStd("stream closed")
	ee := New(base).
		Component("capture").
		Category(CategoryCameraConnection).
		Context("camera_id", "cam-1").
		Build()

	assert.Equal(t, "stream closed", ee.Error())
	assert.True(t, Is(ee, base))
	assert.Equal(t, "capture", ee.Component)
	assert.Equal(t, "camera-connection", ee.GetCategory())
	assert.Equal(t, "cam-1", ee.GetContext()["camera_id"])
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	a := Newf("quota exceeded").Category(CategoryStorageQuota).Build()
	b := Newf("different message").Category(CategoryStorageQuota).Build()
	c := Newf("other").Category(CategoryFileIO).Build()

	assert.True(t, Is(a, b), "errors with the same category should match")
	assert.False(t, Is(a, c))
}

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	ee := New(io.EOF).Build()
	require.NotNil(t, ee)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.NotEmpty(t, ee.Component)
	assert.False(t, ee.Timestamp.IsZero())
	assert.True(t, Is(ee, io.EOF))
}

func TestContextCopyIsolation(t *testing.T) {
	t.Parallel()

	ee := Newf("oops").Context("k", "v").Build()
	got := ee.GetContext()
	got["k"] = "mutated"
	assert.Equal(t, "v", ee.Context["k"])
}
