package chromquant

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectDataType(t *testing.T) {
	for _, v := range []struct {
		Input    []byte
		Expected DataType
	}{
		{[]byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00}, DataTypeGzip},
		{[]byte{0x50, 0x4b, 0x03, 0x04, 0x14, 0x00}, DataTypeZip},
		{[]byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}, DataTypeXZ},
		{[]byte{0x42, 0x5a, 0x68, 0x39, 0x31, 0x41}, DataTypeBZip2},
		{[]byte{0x78, 0x9c, 0x4b}, DataTypeZ},
		{[]byte("x,y\n"), DataTypeNoCompression},
		{[]byte("HEADER LINE 1\n"), DataTypeNoCompression},
		{[]byte("1"), DataTypeNoCompression},
		{[]byte{}, DataTypeNoCompression},
	} {
		dt, err := DetectDataType(bytes.NewReader(v.Input))
		if err != nil {
			t.Fatalf("%v: %v", v.Input, err)
		}
		if dt != v.Expected {
			t.Errorf("%v: got %s, expected %s", v.Input, dt, v.Expected)
		}
	}
}

func TestOpenReaderGzip(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("SAMPLE RATE=5 Hz\n1234,\n")

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "FID01.ASC.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	rc, err := OpenReader(context.Background(), path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, expected %q", got, payload)
	}
}

func TestReadAllPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.csv")
	payload := []byte("Chem ID,slope,intercept,start,end\nCH4,1,0,1,2\n")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadAll(context.Background(), path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, expected %q", got, payload)
	}
}

func TestOpenSeekerNeedsClientForBuckets(t *testing.T) {
	if _, _, err := OpenSeeker(context.Background(), "gs://bucket/FID01.ASC", nil); err == nil {
		t.Fatal("expected an error when opening a gs:// path without a client")
	}
}
