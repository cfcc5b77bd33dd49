package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"claim-cost/db/memory"
	"claim-cost/decision/catalog"
)

// Document is a fetched and parsed price list
type Document struct {
	URI  string
	Hash string
	Size int
	List *catalog.PriceList
}

// Ingester stores a fetched document in a catalog backend
type Ingester interface {
	Ingest(ctx context.Context, doc *Document) (*IngestionResult, error)
}

// ObjectGetter is the part of the S3 client used to read price lists
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher loads price list documents from local paths or s3:// URIs
type Fetcher struct {
	s3 ObjectGetter
}

// NewFetcher creates a fetcher. A nil client is created lazily from the
// default AWS credential chain on the first s3:// fetch.
func NewFetcher(client ObjectGetter) *Fetcher {
	return &Fetcher{s3: client}
}

// Fetch reads, hashes and parses the document at uri
func (f *Fetcher) Fetch(ctx context.Context, uri string) (*Document, error) {
	data, err := f.read(ctx, uri)
	if err != nil {
		return nil, err
	}
	list, err := memory.ParsePriceList(data)
	if err != nil {
		return nil, err
	}
	return &Document{URI: uri, Hash: HashDocument(data), Size: len(data), List: list}, nil
}

func (f *Fetcher) read(ctx context.Context, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "s3://") {
		data, err := os.ReadFile(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to read price list: %w", err)
		}
		return data, nil
	}

	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	client, err := f.client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3 object %s: %w", uri, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3 object %s: %w", uri, err)
	}
	return data, nil
}

func (f *Fetcher) client(ctx context.Context) (ObjectGetter, error) {
	if f.s3 != nil {
		return f.s3, nil
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	f.s3 = s3.NewFromConfig(cfg)
	return f.s3, nil
}

// ParseS3URI splits s3://bucket/key
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 uri %q: %w", uri, err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || u.Host == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 uri %q: want s3://bucket/key", uri)
	}
	return u.Host, key, nil
}

// HashDocument returns the hex SHA-256 of a raw document
func HashDocument(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
