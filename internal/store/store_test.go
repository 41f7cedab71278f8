package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, "a", `{"x":1}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set(ctx, "b", "two"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set(ctx, "a", "one"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, ok, err := kv.Get(ctx, "a")
	if err != nil || !ok || v != "one" {
		t.Fatalf("Get a: %q %v %v", v, ok, err)
	}
	v, ok, err = kv.Get(ctx, "b")
	if err != nil || !ok || v != "two" {
		t.Fatalf("Get b: %q %v %v", v, ok, err)
	}
}

func TestMemory(t *testing.T) {
	testKV(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	testKV(t, NewFile(path, quietLogger()))

	// a second handle sees the persisted values
	v, ok, err := NewFile(path, quietLogger()).Get(context.Background(), "b")
	if err != nil || !ok || v != "two" {
		t.Fatalf("reopen Get: %q %v %v", v, ok, err)
	}

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestFile_CorruptReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := NewFile(path, quietLogger())
	ctx := context.Background()

	if _, ok, err := f.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("corrupt Get: ok=%v err=%v", ok, err)
	}
	if err := f.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set over corrupt file: %v", err)
	}
	v, ok, err := f.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get after rewrite: %q %v %v", v, ok, err)
	}
}

func TestFile_ConcurrentSet(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "store.json"), quietLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := f.Set(ctx, "k"+strconv.Itoa(i), strconv.Itoa(i)); err != nil {
				t.Errorf("Set %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		v, ok, err := f.Get(ctx, "k"+strconv.Itoa(i))
		if err != nil || !ok || v != strconv.Itoa(i) {
			t.Fatalf("Get k%d: %q %v %v", i, v, ok, err)
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	kv, err := Open(ctx, Options{Backend: "memory"}, quietLogger())
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := kv.(*Memory); !ok {
		t.Fatalf("expected *Memory, got %T", kv)
	}

	kv, err = Open(ctx, Options{Path: filepath.Join(t.TempDir(), "s.json")}, quietLogger())
	if err != nil {
		t.Fatalf("Open default: %v", err)
	}
	if _, ok := kv.(*File); !ok {
		t.Fatalf("expected *File, got %T", kv)
	}

	if _, err := Open(ctx, Options{Backend: "etcd"}, quietLogger()); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
	if _, err := Open(ctx, Options{Backend: "file"}, quietLogger()); err == nil {
		t.Fatalf("expected error for file store without path")
	}
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("OXIDE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OXIDE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	kv, err := Open(ctx, Options{Backend: "redis", RedisAddr: addr, KeyPrefix: "test:" + t.Name() + ":"}, quietLogger())
	if err != nil {
		t.Fatalf("Open redis: %v", err)
	}
	defer kv.(io.Closer).Close()
	testKV(t, kv)
}
