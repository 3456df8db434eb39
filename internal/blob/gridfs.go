package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFS stores blobs in a MongoDB GridFS bucket using the path as filename.
type GridFS struct {
	bucket *gridfs.Bucket
	links  *Links
}

func NewGridFS(db *mongo.Database, bucketName string, links *Links) (*GridFS, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket %q: %w", bucketName, err)
	}
	return &GridFS{bucket: bucket, links: links}, nil
}

type gridFile struct {
	ID         primitive.ObjectID `bson:"_id"`
	Filename   string             `bson:"filename"`
	UploadDate time.Time          `bson:"uploadDate"`
}

func (g *GridFS) Put(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	previous, err := g.find(ctx, bson.M{"filename": path})
	if err != nil {
		return "", err
	}

	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "content_type", Value: contentType}})
	if _, err := g.bucket.UploadFromStream(path, r, opts); err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}

	// Older revisions are dropped only once the new one is durable.
	for _, f := range previous {
		if err := g.bucket.DeleteContext(ctx, f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return "", fmt.Errorf("drop old revision of %s: %w", path, err)
		}
	}
	return g.URL(path), nil
}

func (g *GridFS) Open(ctx context.Context, path string) (*Object, error) {
	stream, err := g.bucket.OpenDownloadStreamByName(path)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}

	obj := &Object{ReadCloser: stream, ContentType: "application/octet-stream"}
	if file := stream.GetFile(); file != nil {
		obj.Size = file.Length
		if ct, ok := file.Metadata.Lookup("content_type").StringValueOK(); ok && ct != "" {
			obj.ContentType = ct
		}
	}
	return obj, nil
}

func (g *GridFS) Exists(ctx context.Context, path string) (bool, error) {
	files, err := g.find(ctx, bson.M{"filename": path})
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

func (g *GridFS) Delete(ctx context.Context, path string) error {
	files, err := g.find(ctx, bson.M{"filename": path})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return ErrNotFound
	}
	for _, f := range files {
		if err := g.bucket.DeleteContext(ctx, f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("delete %s: %w", path, err)
		}
	}
	return nil
}

func (g *GridFS) List(ctx context.Context, prefix string) ([]Entry, error) {
	filter := bson.M{"filename": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	files, err := g.find(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Revisions of one filename collapse into the newest upload.
	latest := make(map[string]time.Time, len(files))
	for _, f := range files {
		if at, ok := latest[f.Filename]; !ok || f.UploadDate.After(at) {
			latest[f.Filename] = f.UploadDate
		}
	}
	entries := make([]Entry, 0, len(latest))
	for p, at := range latest {
		entries = append(entries, Entry{Path: p, UploadedAt: at})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (g *GridFS) URL(path string) string {
	return g.links.URL(path)
}

func (g *GridFS) find(ctx context.Context, filter any) ([]gridFile, error) {
	cur, err := g.bucket.FindContext(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query gridfs: %w", err)
	}
	var files []gridFile
	if err := cur.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("decode gridfs files: %w", err)
	}
	return files, nil
}
