package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/vecdir/internal/fs"
)

// Durability controls the durability guarantees of the log.
type Durability int

const (
	// DurabilitySync calls fsync before Append returns.
	DurabilitySync Durability = iota
	// DurabilityAsync relies on the OS page cache.
	DurabilityAsync
)

func (d Durability) String() string {
	if d == DurabilityAsync {
		return "async"
	}
	return "sync"
}

const (
	walMagic      = "VDIRWAL\x00"
	walVersion    = 1
	walHeaderSize = 20 // magic (8) + version (4) + base LSN (8)
)

var (
	ErrIncompatibleVersion = errors.New("incompatible log version")
	ErrInvalidHeader       = errors.New("invalid log header")
	// ErrCorrupt reports damage that is not a torn tail.
	ErrCorrupt = errors.New("corrupt log")
)

// Options configures a WAL.
type Options struct {
	Durability Durability
}

// DefaultOptions returns options with synchronous durability.
func DefaultOptions() Options {
	return Options{Durability: DurabilitySync}
}

// WAL is an append-only log of vector upserts and deletes.
type WAL struct {
	mu      sync.Mutex
	fs      fs.FileSystem
	file    fs.File
	path    string
	opts    Options
	size    int64
	baseLSN uint64
	nextLSN uint64
	buf     []byte
	closed  bool
	lastErr error
}

// Open opens the log at path, replays every intact record through replay
// (which may be nil) and truncates a torn tail left by an interrupted append.
// Damage anywhere else is reported as ErrCorrupt.
func Open(fsys fs.FileSystem, path string, opts Options, replay func(*Record) error) (*WAL, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_APPEND, 0)
	if err != nil {
		return nil, err
	}

	w := &WAL{fs: fsys, file: f, path: path, opts: opts}
	if err := w.recover(replay); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func (w *WAL) recover(replay func(*Record) error) error {
	stat, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := stat.Size()
	if size < walHeaderSize {
		return fmt.Errorf("%w: file too small (%d < %d)", ErrInvalidHeader, size, walHeaderSize)
	}

	header := make([]byte, walHeaderSize)
	if _, err := w.file.ReadAt(header, 0); err != nil {
		return err
	}
	if string(header[0:8]) != walMagic {
		return fmt.Errorf("%w: invalid magic %q", ErrInvalidHeader, header[0:8])
	}
	if ver := binary.LittleEndian.Uint32(header[8:12]); ver != walVersion {
		return fmt.Errorf("%w: version %d (expected %d)", ErrIncompatibleVersion, ver, walVersion)
	}
	w.baseLSN = binary.LittleEndian.Uint64(header[12:20])

	maxLSN := w.baseLSN
	offset := int64(walHeaderSize)
	br := bufio.NewReader(io.NewSectionReader(w.file, offset, size-offset))
	for {
		rec, n, err := Decode(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			torn, zerr := w.isTornTail(err, offset, n, size)
			if zerr != nil {
				return zerr
			}
			if !torn {
				return fmt.Errorf("%w: offset %d: %w", ErrCorrupt, offset, err)
			}
			if err := w.file.Truncate(offset); err != nil {
				return fmt.Errorf("truncate torn tail: %w", err)
			}
			if err := w.file.Sync(); err != nil {
				return err
			}
			break
		}
		if replay != nil {
			if err := replay(rec); err != nil {
				return err
			}
		}
		maxLSN = max(maxLSN, rec.LSN)
		offset += n
	}

	w.size = offset
	w.nextLSN = maxLSN + 1
	return nil
}

// isTornTail reports whether a decode failure at offset is the remnant of an
// append that never completed: a record cut short by end of file, a bad
// checksum on the final record or a zero-filled tail.
func (w *WAL) isTornTail(err error, offset, n, size int64) (bool, error) {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true, nil
	}
	if errors.Is(err, ErrInvalidCRC) && offset+n == size {
		return true, nil
	}
	return w.zeroFrom(offset, size)
}

func (w *WAL) zeroFrom(offset, size int64) (bool, error) {
	buf := make([]byte, 32*1024)
	for offset < size {
		n, err := w.file.ReadAt(buf[:min(int64(len(buf)), size-offset)], offset)
		for _, b := range buf[:n] {
			if b != 0 {
				return false, nil
			}
		}
		offset += int64(n)
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		if n == 0 {
			break
		}
	}
	return true, nil
}

// Append assigns the next LSN to rec and writes it. With DurabilitySync the
// record is on stable storage when Append returns. A failed append leaves the
// log as it was before the call.
func (w *WAL) Append(rec *Record) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, os.ErrClosed
	}
	if w.lastErr != nil {
		return 0, w.lastErr
	}

	rec.LSN = w.nextLSN
	w.buf = rec.AppendTo(w.buf[:0])

	_, err := w.file.Write(w.buf)
	if err == nil && w.opts.Durability == DurabilitySync {
		err = w.file.Sync()
	}
	if err != nil {
		if terr := w.file.Truncate(w.size); terr != nil {
			w.lastErr = fmt.Errorf("log unusable after failed append: %w", terr)
		}
		return 0, err
	}

	w.size += int64(len(w.buf))
	w.nextLSN++
	return rec.LSN, nil
}

// LastLSN returns the highest LSN in the log, or the base LSN if the log
// holds no records beyond it.
func (w *WAL) LastLSN() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextLSN - 1
}

// BaseLSN returns the LSN recorded in the header by the last rewrite.
func (w *WAL) BaseLSN() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.baseLSN
}

// Size returns the current size of the log in bytes.
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Path returns the file path of the log.
func (w *WAL) Path() string { return w.path }

// Sync commits all written records to stable storage.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	return w.file.Sync()
}

// Close syncs and closes the log file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}
	w.closed = true
	serr := w.file.Sync()
	cerr := w.file.Close()
	if serr != nil {
		return serr
	}
	return cerr
}

// Rewrite atomically replaces the log at path with a fresh header carrying
// baseLSN followed by records, encoded with their existing LSNs. It is used
// to create an empty log and to compact one.
func Rewrite(fsys fs.FileSystem, path string, baseLSN uint64, records []*Record) error {
	return fs.WriteFileAtomic(fsys, path, func(out io.Writer) error {
		bw := bufio.NewWriter(out)
		header := make([]byte, walHeaderSize)
		copy(header[0:8], walMagic)
		binary.LittleEndian.PutUint32(header[8:12], walVersion)
		binary.LittleEndian.PutUint64(header[12:20], baseLSN)
		if _, err := bw.Write(header); err != nil {
			return err
		}
		var buf []byte
		for _, rec := range records {
			buf = rec.AppendTo(buf[:0])
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}
