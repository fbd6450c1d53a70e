package recording

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/utils"
	"github.com/klauspost/compress/gzip"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

const (
	// ArchiveVersion is bumped when the archive layout changes
	ArchiveVersion = 1

	// MaxArchiveBytes caps decompressed import payloads
	MaxArchiveBytes = 64 * 1024 * 1024
)

// Archive is the serialized form of an exported session
type Archive struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Session    *Session  `json:"session"`
}

// Export is a gzipped session archive ready to be written out
type Export struct {
	Filename string `json:"filename"`
	Data     []byte `json:"-"`
	Size     int    `json:"size"`
	Checksum string `json:"checksum"`
}

// Export serializes a session as a gzipped JSON archive. The checksum is
// the SHA-256 of the uncompressed JSON, so integrity can be verified
// after decompression.
func (m *Manager) Export(sessionID string) (*Export, error) {
	session, ok := m.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}

	archive := Archive{
		Version:    ArchiveVersion,
		ExportedAt: time.Now(),
		Session:    session,
	}

	payload, err := sonic.Marshal(archive)
	if err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Name = fmt.Sprintf("recording-%s.json", sessionID)
	if _, err := gz.Write(payload); err != nil {
		return nil, fmt.Errorf("compress archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress archive: %w", err)
	}

	return &Export{
		Filename: gz.Name + ".gz",
		Data:     buf.Bytes(),
		Size:     buf.Len(),
		Checksum: utils.DefaultHasher().Hash(payload),
	}, nil
}

// Import loads an exported archive into the session history.
// Accepts gzipped or plain JSON; payloads in a non-UTF-8 encoding are
// detected and normalized before decoding. Imported sessions are marked
// stopped so they can serve as replay sources but never resume recording.
func (m *Manager) Import(data []byte) (*Session, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("archive content required")
	}

	payload, err := decompress(data)
	if err != nil {
		return nil, err
	}

	payload, err = normalizeEncoding(payload)
	if err != nil {
		return nil, err
	}

	var archive Archive
	if err := sonic.Unmarshal(payload, &archive); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	if archive.Version != ArchiveVersion {
		return nil, fmt.Errorf("unsupported archive version %d", archive.Version)
	}
	if archive.Session == nil || archive.Session.ID == "" {
		return nil, fmt.Errorf("archive contains no session")
	}

	session := archive.Session
	session.State = types.StateStopped
	session.Imported = true
	if session.EndedAt == nil {
		endedAt := session.StartedAt
		session.EndedAt = &endedAt
	}

	m.mu.Lock()
	if existing, ok := m.byID[session.ID]; ok {
		if m.active == existing {
			m.mu.Unlock()
			return nil, fmt.Errorf("session %s is currently recording", session.ID)
		}
		m.removeFromHistory(existing)
	}
	m.byID[session.ID] = session
	m.archive(session)
	snap := session.snapshot()
	m.mu.Unlock()

	m.log.Info("Session imported",
		zap.String("session_id", snap.ID),
		zap.Int("actions", len(snap.Actions)))

	return snap, nil
}

// decompress unwraps gzip when the payload carries its magic bytes,
// otherwise returns the payload as-is
func decompress(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		if len(data) > MaxArchiveBytes {
			return nil, fmt.Errorf("archive exceeds maximum size of %d bytes", MaxArchiveBytes)
		}
		return data, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer gz.Close()

	payload, err := io.ReadAll(io.LimitReader(gz, MaxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("decompress archive: %w", err)
	}
	if len(payload) > MaxArchiveBytes {
		return nil, fmt.Errorf("archive exceeds maximum size of %d bytes", MaxArchiveBytes)
	}
	return payload, nil
}

// normalizeEncoding converts non-UTF-8 payloads to UTF-8.
// Detection is best-effort: when the detector is unsure the payload
// passes through unchanged and JSON decoding reports the real problem.
func normalizeEncoding(payload []byte) ([]byte, error) {
	payload = bytes.TrimPrefix(payload, []byte("\uFEFF"))

	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(payload)
	if err != nil || result == nil {
		return payload, nil
	}

	name := strings.ToLower(result.Charset)
	if name == "utf-8" || strings.HasPrefix(name, "iso-8859-1") {
		// ISO-8859-1 is the detector's catch-all for plain ASCII
		return payload, nil
	}

	reader, err := charset.NewReaderLabel(name, bytes.NewReader(payload))
	if err != nil {
		return payload, nil
	}
	converted, err := io.ReadAll(io.LimitReader(reader, MaxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("convert archive encoding from %s: %w", result.Charset, err)
	}
	// A byte order mark that survived decoding is not valid JSON
	converted = bytes.TrimPrefix(converted, []byte("\uFEFF"))
	return converted, nil
}
