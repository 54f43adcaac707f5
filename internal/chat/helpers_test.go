package chat

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/suPer8Hu/swaif-depths/internal/db"
)

const (
	leadRaw      = "5511999887766@s.whatsapp.net"
	secretaryRaw = "5511998681314@s.whatsapp.net"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect("sqlite", filepath.Join(t.TempDir(), "swaif_test.db"))
	require.NoError(t, err, "open sqlite")
	require.NoError(t, AutoMigrate(gdb), "automigrate")
	return gdb
}

func strPtr(s string) *string { return &s }

func seedRaw(t *testing.T, repo *Repo, sender *string, receiver, content, ts string) *RawMessage {
	t.Helper()
	m := &RawMessage{
		N8NHost:       "test",
		EvoInstance:   "test",
		EvoHost:       "test",
		SenderPhone:   sender,
		ReceiverPhone: receiver,
		MessageType:   "conversation",
		Content:       content,
		Timestamp:     ts,
	}
	require.NoError(t, repo.InsertRawMessage(context.Background(), m))
	return m
}
