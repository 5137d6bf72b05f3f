package s3store

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/moonwalker/entitycache/pkg/store"
)

const (
	DefaultRegion = "eu-central-1"

	// object metadata holding the unix expiry of a record
	expiresMeta = "Expires-At"
	maxKeys     = 1000
)

type s3store struct {
	bucketName string
	region     string
	now        func() time.Time

	newClient func(region string) (s3iface.S3API, error)

	// mu guards s3 and ready; only a successful open is kept
	mu    sync.Mutex
	ready bool
	s3    s3iface.S3API
}

type Option func(*s3store)

func WithRegion(region string) Option {
	return func(s *s3store) {
		s.region = region
	}
}

// WithClient uses an existing client and skips bucket creation.
func WithClient(client s3iface.S3API) Option {
	return func(s *s3store) {
		s.s3 = client
		s.ready = true
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *s3store) {
		s.now = now
	}
}

func New(bucketName string, opts ...Option) store.Store {
	s := &s3store{bucketName: bucketName, region: DefaultRegion, now: time.Now, newClient: newClient}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newClient(region string) (s3iface.S3API, error) {
	sess, err := session.NewSession(aws.NewConfig().WithRegion(region))
	if err != nil {
		return nil, err
	}
	return s3.New(sess), nil
}

// open creates the client and the bucket on first use. A failed open is not
// remembered, the next call tries again.
func (s *s3store) open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := s.newClient(s.region)
	if err != nil {
		return err
	}

	inp := &s3.CreateBucketInput{
		Bucket: aws.String(s.bucketName),
		CreateBucketConfiguration: &s3.CreateBucketConfiguration{
			LocationConstraint: aws.String(s.region),
		},
	}

	_, err = client.CreateBucketWithContext(ctx, inp)
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeBucketAlreadyOwnedByYou:
			err = nil
		}
	}
	if err != nil {
		return err
	}

	s.s3 = client
	s.ready = true
	return nil
}

func (s *s3store) GetInternalStore() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s3
}

func (s *s3store) Get(ctx context.Context, key string) (val []byte, err error) {
	inp := &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}

	err = s.open(ctx)
	if err != nil {
		return
	}

	out, err := s.s3.GetObjectWithContext(ctx, inp)
	if err != nil {
		if isNotFound(err) {
			err = nil
		}
		return
	}
	defer out.Body.Close()

	if s.expired(out.Metadata) {
		return nil, nil
	}

	val, err = io.ReadAll(out.Body)
	return
}

func (s *s3store) Set(ctx context.Context, key string, val []byte, options *store.WriteOptions) (err error) {
	inp := &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Body:   aws.ReadSeekCloser(bytes.NewReader(val)),
	}

	if options != nil {
		if len(options.ContentType) > 0 {
			inp.ContentType = aws.String(options.ContentType)
		}
		// S3 has no per object TTL; expiry is recorded and checked on read
		if options.TTL > 0 {
			expires := s.now().Add(time.Duration(options.TTL) * time.Second)
			inp.Metadata = map[string]*string{
				expiresMeta: aws.String(strconv.FormatInt(expires.Unix(), 10)),
			}
		}
	}

	err = s.open(ctx)
	if err != nil {
		return
	}

	_, err = s.s3.PutObjectWithContext(ctx, inp)
	return
}

func (s *s3store) Delete(ctx context.Context, key string) (err error) {
	inp := &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}

	err = s.open(ctx)
	if err != nil {
		return
	}

	_, err = s.s3.DeleteObjectWithContext(ctx, inp)
	return
}

// ScanPage lists one page of objects under the literal prefix of pattern;
// the S3 continuation token is the cursor.
func (s *s3store) ScanPage(ctx context.Context, cursor string, pattern string, count int) (string, []string, error) {
	if err := store.CheckPattern(pattern); err != nil {
		return "", nil, err
	}
	if count <= 0 || count > maxKeys {
		count = maxKeys
	}

	inp := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucketName),
		Prefix:  aws.String(store.LiteralPrefix(pattern)),
		MaxKeys: aws.Int64(int64(count)),
	}
	if cursor != store.CursorStart && cursor != "" {
		inp.ContinuationToken = aws.String(cursor)
	}

	if err := s.open(ctx); err != nil {
		return "", nil, err
	}

	out, err := s.s3.ListObjectsV2WithContext(ctx, inp)
	if err != nil {
		return "", nil, err
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		key := aws.StringValue(obj.Key)
		if store.Match(pattern, key) {
			keys = append(keys, key)
		}
	}

	next := store.CursorStart
	if aws.BoolValue(out.IsTruncated) && len(aws.StringValue(out.NextContinuationToken)) > 0 {
		next = aws.StringValue(out.NextContinuationToken)
	}

	return next, keys, nil
}

// MGet fetches objects one by one, S3 has no batch read.
func (s *s3store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	vals := make([][]byte, len(keys))
	for i, key := range keys {
		val, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		vals[i] = val
	}
	return vals, nil
}

func (s *s3store) Close() error {
	return nil
}

func (s *s3store) expired(meta map[string]*string) bool {
	for k, v := range meta {
		// the SDK canonicalizes metadata keys, compare loosely
		if !strings.EqualFold(k, expiresMeta) {
			continue
		}
		at, err := strconv.ParseInt(aws.StringValue(v), 10, 64)
		if err != nil {
			return false
		}
		return s.now().Unix() >= at
	}
	return false
}

func isNotFound(err error) bool {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}
