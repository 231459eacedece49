package gcs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/chatsync/internal/adapters/attachments/gcs"
)

func TestDownloadURLEscapesObjectPath(t *testing.T) {
	got := gcs.DownloadURL("tugas3.appspot.com", "images/1700000000000_ab12.jpg", "tok-1")
	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/tugas3.appspot.com/o/images%2F1700000000000_ab12.jpg?alt=media&token=tok-1",
		got)
}
