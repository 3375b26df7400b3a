package s3mirror

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/weftend/weftend/library"
)

func testMirror(t *testing.T, endpoint string) *Mirror {
	t.Helper()
	cfg, err := awsconfig.LoadDefaultConfig(t.Context(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		t.Fatalf("load aws config: %v", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &Mirror{client: client, cfg: Config{Bucket: "weftend-library"}}
}

func TestParsePath(t *testing.T) {
	bucket, prefix := ParsePath("my-bucket/some/prefix")
	if bucket != "my-bucket" || prefix != "some/prefix" {
		t.Fatalf("got bucket=%q prefix=%q", bucket, prefix)
	}
	bucket, prefix = ParsePath("bare-bucket")
	if bucket != "bare-bucket" || prefix != "" {
		t.Fatalf("got bucket=%q prefix=%q", bucket, prefix)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (&Config{}).Validate(); err == nil {
		t.Fatal("expected error for empty bucket")
	}
	if err := (&Config{Bucket: "b"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPushTarget_UploadsExistingFiles(t *testing.T) {
	var mu sync.Mutex
	var puts []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			mu.Lock()
			puts = append(puts, r.URL.Path)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	root := t.TempDir()
	paths := library.TargetPaths(root, "acme-widget")
	if err := os.MkdirAll(paths.ViewDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(paths.Latest, []byte("run_000001\n"), 0o644); err != nil {
		t.Fatalf("write latest: %v", err)
	}
	if err := os.WriteFile(paths.StateFile, []byte(`{"targetKey":"acme-widget"}`), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
	// baseline.txt and blocked.txt deliberately absent.

	m := testMirror(t, ts.URL)
	if err := m.PushTarget(context.Background(), root, "acme-widget"); err != nil {
		t.Fatalf("push target: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(puts) != 2 {
		t.Fatalf("expected 2 PUTs (latest + state), got %d: %v", len(puts), puts)
	}
	wantLatest := filepath.ToSlash(filepath.Join("/weftend-library/acme-widget/view/latest.txt"))
	wantState := filepath.ToSlash(filepath.Join("/weftend-library/acme-widget/view/view_state.json"))
	found := map[string]bool{}
	for _, p := range puts {
		found[p] = true
	}
	if !found[wantLatest] || !found[wantState] {
		t.Fatalf("unexpected PUT paths: %v", puts)
	}
}

func TestPushTarget_NoFilesIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer ts.Close()

	root := t.TempDir()
	m := testMirror(t, ts.URL)
	if err := m.PushTarget(context.Background(), root, "empty-target"); err != nil {
		t.Fatalf("push target: %v", err)
	}
}
