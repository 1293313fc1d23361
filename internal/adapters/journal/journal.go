package journal

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

const (
	recordHeaderLen = 12
	fileName        = "snapshots.journal"
)

// Stats describes the journal file.
type Stats struct {
	Entries   uint64
	LastSeq   uint64
	SizeBytes int64
}

// Journal is an append-only local file of snapshots. Each record is
// [8 bytes sample seq][4 bytes len][len bytes json].
type Journal struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	writer    *bufio.Writer
	fsync     bool
	entries   uint64
	lastSeq   uint64
	sizeBytes int64
}

// Open opens or creates the journal in dir, dropping a torn trailing record.
func Open(dir string, fsync bool) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	j := &Journal{
		path:   path,
		file:   f,
		writer: bufio.NewWriterSize(f, 64<<10),
		fsync:  fsync,
	}
	if err := j.scanExisting(); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the journal file location.
func Path(dir string) string {
	return filepath.Join(dir, fileName)
}

func (j *Journal) scanExisting() error {
	rf, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var offset int64

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("journal scan header: %w", err)
		}
		seq := binary.BigEndian.Uint64(hdr[0:8])
		length := binary.BigEndian.Uint32(hdr[8:12])

		if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("journal scan body: %w", err)
		}
		offset += recordHeaderLen + int64(length)
		j.entries++
		j.lastSeq = seq
	}

	if err := j.file.Truncate(offset); err != nil {
		return err
	}
	j.sizeBytes = offset
	return nil
}

func (j *Journal) Name() string { return "journal" }

// WriteSnapshot appends one record and flushes it to the file.
func (j *Journal) WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return errors.New("journal closed")
	}

	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], snap.SampleSeq)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := j.writer.Write(b); err != nil {
		return err
	}
	if err := j.writer.Flush(); err != nil {
		return err
	}
	if j.fsync {
		if err := j.file.Sync(); err != nil {
			return err
		}
	}

	j.entries++
	j.lastSeq = snap.SampleSeq
	j.sizeBytes += int64(len(b) + len(hdr))
	return nil
}

// Iterate calls fn for every record in file order.
func (j *Journal) Iterate(fn func(snap *domain.Snapshot) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.writer != nil {
		if err := j.writer.Flush(); err != nil {
			return err
		}
	}
	return iterateFile(j.path, fn)
}

// ReadFile walks a journal file without opening it for writing.
func ReadFile(path string, fn func(snap *domain.Snapshot) error) error {
	return iterateFile(path, fn)
}

func iterateFile(path string, fn func(snap *domain.Snapshot) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("journal truncated header: %w", err)
		}
		l := binary.BigEndian.Uint32(hdr[8:12])

		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("corrupt journal: %w", err)
		}

		var snap domain.Snapshot
		if err := json.Unmarshal(b, &snap); err != nil {
			return fmt.Errorf("corrupt journal entry: %w", err)
		}
		if err := fn(&snap); err != nil {
			return err
		}
	}
}

func (j *Journal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Stats{Entries: j.entries, LastSeq: j.lastSeq, SizeBytes: j.sizeBytes}
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.writer.Flush()
	if cerr := j.file.Close(); err == nil {
		err = cerr
	}
	j.file = nil
	return err
}

var _ ports.Sink = (*Journal)(nil)
