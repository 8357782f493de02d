package service

import (
	"bytes"
	"context"
	"encoding/json"
	"exam_engine_backend/internal/config"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/util"
	"exam_engine_backend/pkg/logger"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider 成绩快照的存储后端
type StorageProvider interface {
	Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, filename string) error
	GetURL(filename string) string
}

// LocalStorageProvider 本地存储实现
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, filename)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *LocalStorageProvider) Delete(ctx context.Context, filename string) error {
	err := os.Remove(filepath.Join(p.Config.LocalPath, filename))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (p *LocalStorageProvider) GetURL(filename string) string {
	return "/uploads/" + filename
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, filename, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, filename string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, filename, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(filename string) string {
	return "/" + p.Config.MinioBucket + "/" + filename
}

// OSSStorageProvider 阿里云OSS存储实现
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return "", err
	}
	if err := bucket.PutObject(filename, reader, oss.ContentType(contentType)); err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *OSSStorageProvider) Delete(ctx context.Context, filename string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.DeleteObject(filename)
}

func (p *OSSStorageProvider) GetURL(filename string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, filename)
}

// NewStorageProvider 按 storage.type 选择后端，初始化失败时退回本地存储
func NewStorageProvider(cfg *config.StorageConfig) StorageProvider {
	switch cfg.Type {
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(cfg)
		if err == nil {
			return p
		}
		logger.Log.Error("MinIO 初始化失败，使用本地存储", zap.Error(err))
	case util.StorageOSS:
		p, err := NewOSSStorageProvider(cfg)
		if err == nil {
			return p
		}
		logger.Log.Error("OSS 初始化失败，使用本地存储", zap.Error(err))
	}
	return &LocalStorageProvider{Config: cfg}
}

// ResultArchive 发布成绩时写入的快照，供 PDF/邮件等下游读取
type ResultArchive struct {
	Provider StorageProvider
	Now      Clock
}

func NewResultArchive(provider StorageProvider, now Clock) *ResultArchive {
	return &ResultArchive{Provider: provider, Now: orNow(now)}
}

type resultSnapshot struct {
	ExamID      string            `json:"examId"`
	Date        string            `json:"date"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Results     []snapshotAttempt `json:"results"`
}

type snapshotAttempt struct {
	StudentID     uint       `json:"studentId"`
	AttemptNumber int        `json:"attemptNumber"`
	SlotID        string     `json:"slotId"`
	Score         int        `json:"score"`
	Percentage    float64    `json:"percentage"`
	IsPassed      bool       `json:"isPassed"`
	IsQualified   bool       `json:"isQualified"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
}

func snapshotKey(examID string, day time.Time) string {
	return fmt.Sprintf("results/%s/%s.json", examID, day.Format(util.DateFormat))
}

// Store 覆盖写入某考试某日的已发布成绩
func (a *ResultArchive) Store(ctx context.Context, examID string, day time.Time, attempts []model.ExamAttempt) (string, error) {
	snap := resultSnapshot{
		ExamID:      examID,
		Date:        day.Format(util.DateFormat),
		GeneratedAt: a.Now(),
		Results:     make([]snapshotAttempt, 0, len(attempts)),
	}
	for _, at := range attempts {
		snap.Results = append(snap.Results, snapshotAttempt{
			StudentID:     at.StudentID,
			AttemptNumber: at.AttemptNumber,
			SlotID:        at.SlotID,
			Score:         at.Score,
			Percentage:    at.Percentage,
			IsPassed:      at.IsPassed,
			IsQualified:   at.IsQualified,
			PublishedAt:   at.PublishedAt,
		})
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	return a.Provider.Upload(ctx, snapshotKey(examID, day), bytes.NewReader(data), int64(len(data)), "application/json")
}

func (a *ResultArchive) Remove(ctx context.Context, examID string, day time.Time) error {
	return a.Provider.Delete(ctx, snapshotKey(examID, day))
}
