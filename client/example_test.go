package client_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/adamwoolhether/httpq/client"
)

func ExampleBuild() {
	c, err := client.Build(
		client.WithTimeout(10*time.Second),
		client.WithUserAgent("example/1.0"),
		client.WithMaxConcurrent(8),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer c.Close(context.Background())

	fmt.Println("client built")
	// Output: client built
}

func ExampleClient_Get() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer ts.Close()

	c, _ := client.Build()

	_, err := c.Get(context.Background(), client.Descriptor{URL: ts.URL}, client.WithCallback(func(ev *client.Event) {
		fmt.Println(ev.StatusCode, string(ev.Body))
	}))
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	// Close waits for the worker and delivers its event.
	if err := c.Close(context.Background()); err != nil {
		fmt.Println("error:", err)
	}
	// Output: 200 {"status":"ok"}
}

func ExampleClient_Post() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s %d", r.Method, r.ContentLength)
	}))
	defer ts.Close()

	c, _ := client.Build(client.WithHandler(func(ev *client.Event) {
		fmt.Println(string(ev.Body))
	}))

	_, _ = c.Post(context.Background(), client.Descriptor{URL: ts.URL})
	_ = c.Close(context.Background())
	// Output: POST 0
}

func ExampleClient_Run() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	c, _ := client.Build()
	ctx, cancel := context.WithCancel(context.Background())

	_, _ = c.Head(ctx, client.Descriptor{URL: ts.URL}, client.WithCallback(func(ev *client.Event) {
		fmt.Println(ev.Method, ev.StatusCode)
		cancel()
	}))

	// Run blocks on the calling goroutine until ctx is cancelled.
	_ = c.Run(ctx, 100*time.Millisecond)
	// Output: HEAD 202
}

func ExampleDescriptor_outputFile() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "file content")
	}))
	defer ts.Close()

	root, _ := os.MkdirTemp("", "httpq-example")
	defer os.RemoveAll(root)

	c, _ := client.Build(client.WithOutputRoot(root), client.WithHandler(func(ev *client.Event) {
		if ev.Failed() {
			fmt.Println(ev.Message())
			return
		}
		fmt.Println(filepath.Base(ev.OutputPath), ev.BytesWritten)
	}))

	_, _ = c.Get(context.Background(), client.Descriptor{URL: ts.URL, OutputFile: "out.txt"})
	_, _ = c.Get(context.Background(), client.Descriptor{URL: ts.URL, OutputFile: "no/such/dir.txt"})
	_ = c.Close(context.Background())
	// Unordered output:
	// out.txt 12
	// Can not open output file
}
