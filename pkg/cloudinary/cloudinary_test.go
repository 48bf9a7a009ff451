package cloudinary

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

func TestPlacementNestsCourseFolders(t *testing.T) {
	at := time.Unix(1767225600, 0)
	storage := &Storage{folder: "/suitec/assets/", now: func() time.Time { return at }}

	folder, id := storage.placement("course-7/submission-12/my-essay.pdf")
	require.Equal(t, "suitec/assets/course-7/submission-12", folder)
	require.Equal(t, "my-essay-1767225600", id)

	folder, id = storage.placement("../notes.txt")
	require.Equal(t, "suitec/assets", folder)
	require.Equal(t, "notes-1767225600", id)

	storage.folder = ""
	folder, id = storage.placement("course-7/???.png")
	require.Equal(t, "course-7", folder)
	require.Equal(t, "attachment-1767225600", id)
}
