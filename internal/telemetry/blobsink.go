package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// DateFolderFormat lays sink blobs out as YYYY/MM/DD.
const DateFolderFormat = "%d/%02d/%02d"

func FormatDateFolder(t time.Time) string {
	return fmt.Sprintf(DateFolderFormat, t.Year(), int(t.Month()), t.Day())
}

type BlobSinkConfig struct {
	AccountName string
	AccountKey  string
	Container   string
	BlobName    string        // default <date folder>/<hostname>.jsonl
	FlushEvery  time.Duration // default 2s
	Level       slog.Leveler
}

type appender interface {
	AppendBlock(ctx context.Context, body io.ReadSeekCloser, o *appendblob.AppendBlockOptions) (appendblob.AppendBlockResponse, error)
}

// BlobSink is a slog.Handler that batches JSON lines into an Azure append blob.
type BlobSink struct {
	core  *sinkCore
	level slog.Leveler
	attrs []slog.Attr
	group string
}

type sinkCore struct {
	ab     appender
	ch     chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ticker *time.Ticker
	once   sync.Once
}

func NewBlobSink(ctx context.Context, cfg BlobSinkConfig) (*BlobSink, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" || cfg.Container == "" {
		return nil, errors.New("account name, account key and container are required for the log sink")
	}
	if cfg.BlobName == "" {
		host, _ := os.Hostname()
		cfg.BlobName = FormatDateFolder(time.Now().UTC()) + "/" + host + ".jsonl"
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}
	// BlobName may contain slashes, so only the container is escaped.
	blobURL := "https://" + cfg.AccountName + ".blob.core.windows.net/" + url.PathEscape(cfg.Container) + "/" + cfg.BlobName
	ab, err := appendblob.NewClientWithSharedKeyCredential(blobURL, cred, nil)
	if err != nil {
		return nil, err
	}
	if _, err := ab.Create(ctx, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobAlreadyExists) {
		return nil, fmt.Errorf("create log blob %s: %w", cfg.BlobName, err)
	}
	return newBlobSink(ctx, ab, cfg.Level, cfg.FlushEvery), nil
}

func newBlobSink(ctx context.Context, ab appender, level slog.Leveler, flushEvery time.Duration) *BlobSink {
	if flushEvery <= 0 {
		flushEvery = 2 * time.Second
	}
	if level == nil {
		level = slog.LevelInfo
	}
	ctx, cancel := context.WithCancel(ctx)
	core := &sinkCore{
		ab:     ab,
		ch:     make(chan []byte, 1024),
		ctx:    ctx,
		cancel: cancel,
		ticker: time.NewTicker(flushEvery),
	}
	core.wg.Add(1)
	go core.loop()
	return &BlobSink{core: core, level: level}
}

// Close flushes buffered lines and stops the background writer.
func (h *BlobSink) Close() error {
	h.core.once.Do(func() {
		h.core.cancel()
		h.core.wg.Wait()
		h.core.ticker.Stop()
	})
	return nil
}

func (h *BlobSink) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *BlobSink) Handle(_ context.Context, r slog.Record) error {
	if err := h.core.ctx.Err(); err != nil {
		return err
	}
	line, err := h.encode(r)
	if err != nil {
		return err
	}
	select {
	case h.core.ch <- line:
		return nil
	case <-h.core.ctx.Done():
		return h.core.ctx.Err()
	}
}

func (h *BlobSink) encode(r slog.Record) ([]byte, error) {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ev := map[string]any{
		"ts":    ts.UTC().Format(time.RFC3339Nano),
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	add := func(a slog.Attr) bool {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return true
		}
		key := a.Key
		if a.Value.Kind() == slog.KindGroup {
			// nested groups are flattened one level
			m := map[string]any{}
			for _, aa := range a.Value.Group() {
				m[aa.Key] = aa.Value.Resolve().Any()
			}
			ev[key] = m
			return true
		}
		if err, ok := a.Value.Any().(error); ok {
			ev[key] = err.Error()
			return true
		}
		ev[key] = a.Value.Any()
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		return add(a)
	})

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (h *BlobSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		next.attrs = append(next.attrs[:len(next.attrs):len(next.attrs)], a)
	}
	return &next
}

func (h *BlobSink) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}

func (c *sinkCore) loop() {
	defer c.wg.Done()
	var buf []byte
	flush := func(ctx context.Context) {
		if len(buf) == 0 {
			return
		}
		if _, err := c.ab.AppendBlock(ctx, readSeekNopCloser{bytes.NewReader(buf)}, nil); err != nil {
			// the default logger may be this sink, so report on stderr
			fmt.Fprintf(os.Stderr, "log sink append failed: %v\n", err)
		}
		buf = buf[:0]
	}

	for {
		select {
		case <-c.ctx.Done():
		drain:
			for {
				select {
				case line := <-c.ch:
					buf = append(buf, line...)
				default:
					break drain
				}
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(ctx)
			cancel()
			return
		case line := <-c.ch:
			buf = append(buf, line...)
		case <-c.ticker.C:
			flush(c.ctx)
		}
	}
}

type readSeekNopCloser struct{ io.ReadSeeker }

func (r readSeekNopCloser) Close() error { return nil }
