package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"LocalFM/logger"
	"LocalFM/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/singleflight"
)

// MinioOptions 定义 MinIO 连接参数
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioStore keeps blobs as objects in an S3-compatible bucket. The client is
// created and the bucket ensured on first use.
type MinioStore struct {
	opts MinioOptions

	group  singleflight.Group
	mu     sync.RWMutex
	client *minio.Client
	closed bool
}

// NewMinioStore returns a store for opts. No connection is made yet.
func NewMinioStore(opts MinioOptions) *MinioStore {
	return &MinioStore{opts: opts}
}

func (m *MinioStore) handle(ctx context.Context) (*minio.Client, error) {
	m.mu.RLock()
	client, closed := m.client, m.closed
	m.mu.RUnlock()
	if closed {
		return nil, errStoreClosed
	}
	if client != nil {
		return client, nil
	}

	v, err, _ := m.group.Do("open", func() (interface{}, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.client != nil {
			return m.client, nil
		}

		logger.Info("正在连接 MinIO 服务器...",
			logger.String("endpoint", m.opts.Endpoint),
			logger.String("bucket", m.opts.Bucket))

		client, err := minio.New(m.opts.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(m.opts.AccessKey, m.opts.SecretKey, ""),
			Secure: m.opts.UseSSL,
			Region: m.opts.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
		}

		// The first caller's context bounds the handshake.
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exists, err := client.BucketExists(checkCtx, m.opts.Bucket)
		if err != nil {
			return nil, fmt.Errorf("检查存储桶失败: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(checkCtx, m.opts.Bucket, minio.MakeBucketOptions{Region: m.opts.Region}); err != nil {
				return nil, fmt.Errorf("创建存储桶失败: %w", err)
			}
			logger.Info("成功创建存储桶", logger.String("bucket", m.opts.Bucket))
		}

		m.client = client
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*minio.Client), nil
}

func (m *MinioStore) Put(ctx context.Context, id model.AssetID, blob Blob) error {
	if err := validKey(id); err != nil {
		return err
	}
	client, err := m.handle(ctx)
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, m.opts.Bucket, id.String(), bytes.NewReader(blob.Data), int64(len(blob.Data)),
		minio.PutObjectOptions{ContentType: contentTypeOf(blob)})
	if err != nil {
		return fmt.Errorf("上传对象 %s 失败: %w", id, err)
	}
	return nil
}

func (m *MinioStore) Get(ctx context.Context, id model.AssetID) (Blob, bool, error) {
	if err := validKey(id); err != nil {
		return Blob{}, false, err
	}
	client, err := m.handle(ctx)
	if err != nil {
		return Blob{}, false, err
	}
	object, err := client.GetObject(ctx, m.opts.Bucket, id.String(), minio.GetObjectOptions{})
	if err != nil {
		return Blob{}, false, fmt.Errorf("读取对象 %s 失败: %w", id, err)
	}
	defer object.Close()

	info, err := object.Stat()
	if err != nil {
		if isNoSuchKey(err) {
			return Blob{}, false, nil
		}
		return Blob{}, false, fmt.Errorf("读取对象 %s 信息失败: %w", id, err)
	}
	data, err := io.ReadAll(object)
	if err != nil {
		return Blob{}, false, fmt.Errorf("读取对象 %s 内容失败: %w", id, err)
	}
	return Blob{Data: data, ContentType: info.ContentType}, true, nil
}

func (m *MinioStore) Delete(ctx context.Context, id model.AssetID) error {
	if err := validKey(id); err != nil {
		return err
	}
	client, err := m.handle(ctx)
	if err != nil {
		return err
	}
	if err := client.RemoveObject(ctx, m.opts.Bucket, id.String(), minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("删除对象 %s 失败: %w", id, err)
	}
	return nil
}

// List 列出前缀下的所有对象
func (m *MinioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	client, err := m.handle(ctx)
	if err != nil {
		return nil, err
	}
	var objects []ObjectInfo
	for object := range client.ListObjects(ctx, m.opts.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			ContentType:  object.ContentType,
			LastModified: object.LastModified,
		})
	}
	return objects, nil
}

// DeletePrefix 删除前缀下的所有对象
func (m *MinioStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	objects, err := m.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, nil
	}
	client, err := m.handle(ctx)
	if err != nil {
		return 0, err
	}

	objectsCh := make(chan minio.ObjectInfo, len(objects))
	go func() {
		defer close(objectsCh)
		for _, obj := range objects {
			objectsCh <- minio.ObjectInfo{Key: obj.Key}
		}
	}()

	for rmErr := range client.RemoveObjects(ctx, m.opts.Bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rmErr.Err != nil {
			return 0, fmt.Errorf("删除对象 %s 失败: %w", rmErr.ObjectName, rmErr.Err)
		}
	}
	return len(objects), nil
}

// Close drops the client; minio clients hold no resources needing release.
func (m *MinioStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.client = nil
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
