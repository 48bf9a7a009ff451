package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/pkg/canvas"
)

type memoryStorage struct {
	names []string
	fail  error
}

func (s *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	if _, err := io.ReadAll(reader); err != nil {
		return "", err
	}
	s.names = append(s.names, name)
	return "https://cdn.example.edu/" + name, nil
}

type staticFetcher map[string][]byte

func (f staticFetcher) DownloadFile(_ context.Context, url string) ([]byte, error) {
	data, ok := f[url]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return data, nil
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestImportURLSubmission(t *testing.T) {
	h := newLedgerHarness(t)
	ben := h.user(2)
	assets := NewAssetService(h.assetRepo, nil, nil, 0, zerolog.Nop())

	ids, err := assets.ImportSubmission(h.ctx, SubmissionImport{
		CourseID:   h.course.ID,
		UserID:     ben.ID,
		Title:      "Link list",
		Submission: canvas.Submission{ID: 1, SubmissionType: "online_url", URL: "https://example.com/a"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	asset, err := h.assetRepo.GetByID(h.ctx, h.course.ID, ids[0])
	require.NoError(t, err)
	require.Equal(t, models.AssetTypeLink, asset.Type)
	require.Equal(t, models.AssetSourceSubmission, asset.Source)
	require.True(t, asset.IsSoleOwner(ben.ID))

	ids, err = assets.ImportSubmission(h.ctx, SubmissionImport{CourseID: h.course.ID, UserID: ben.ID, Submission: canvas.Submission{SubmissionType: "online_text_entry"}})
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestImportUploadCopiesAttachments(t *testing.T) {
	h := newLedgerHarness(t)
	ben := h.user(2)
	storage := &memoryStorage{}
	fetcher := staticFetcher{"https://lms.example.edu/files/1": pngHeader}
	assets := NewAssetService(h.assetRepo, storage, fetcher, 1, zerolog.Nop())

	ids, err := assets.ImportSubmission(h.ctx, SubmissionImport{
		CourseID: h.course.ID,
		UserID:   ben.ID,
		Submission: canvas.Submission{ID: 2, SubmissionType: "online_upload", Attachments: []canvas.Attachment{
			{ID: 1, DisplayName: "My Diagram.PNG", URL: "https://lms.example.edu/files/1", ContentType: "application/octet-stream", Size: int64(len(pngHeader))},
		}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	stored := fmt.Sprintf("course-%d/submission-2/my-diagram.png", h.course.ID)
	require.Equal(t, []string{stored}, storage.names)

	asset, err := h.assetRepo.GetByID(h.ctx, h.course.ID, ids[0])
	require.NoError(t, err)
	require.Equal(t, "image/png", asset.MimeType)
	require.Equal(t, "https://cdn.example.edu/"+stored, asset.URL)
}

func TestImportUploadRejectsOversizedAndFailedDownloads(t *testing.T) {
	h := newLedgerHarness(t)
	ben := h.user(2)
	assets := NewAssetService(h.assetRepo, &memoryStorage{}, staticFetcher{"https://lms.example.edu/files/1": pngHeader}, 1, zerolog.Nop())

	_, err := assets.ImportSubmission(h.ctx, SubmissionImport{
		CourseID: h.course.ID,
		UserID:   ben.ID,
		Submission: canvas.Submission{SubmissionType: "online_upload", Attachments: []canvas.Attachment{
			{ID: 1, Filename: "huge.mov", URL: "https://lms.example.edu/files/1", Size: 2 * 1024 * 1024},
		}},
	})
	require.Equal(t, apierr.CodeValidation, apierr.CodeOf(err))

	_, err = assets.ImportSubmission(h.ctx, SubmissionImport{
		CourseID: h.course.ID,
		UserID:   ben.ID,
		Submission: canvas.Submission{SubmissionType: "online_upload", Attachments: []canvas.Attachment{
			{ID: 1, Filename: "ok.png", URL: "https://lms.example.edu/files/1"},
			{ID: 2, Filename: "gone.png", URL: "https://lms.example.edu/files/2"},
		}},
	})
	require.Equal(t, apierr.CodeExternal, apierr.CodeOf(err))

	stored, err := h.assetRepo.ListByCourse(h.ctx, h.course.ID)
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestAssetFileName(t *testing.T) {
	require.Equal(t, "week-1-notes.pdf", assetFileName("Week 1 Notes.PDF"))
	require.Equal(t, "archive.bin", assetFileName("archive"))
	require.Equal(t, "text/plain", normalizeAssetMime("Text/Plain; charset=utf-8"))
	require.Equal(t, "application/octet-stream", normalizeAssetMime(""))
}
