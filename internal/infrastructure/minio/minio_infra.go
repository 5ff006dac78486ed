package minio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/internal/infrastructure"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/jitter"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"

	"github.com/google/uuid"
)

const (
	cleanupTimeout  = 30 * time.Second
	cleanupAttempts = 3
	cleanupBackoff  = time.Second
)

// MinioInfrastructure архивирует исходные изображения запуска в MinIO и удаляет их при неудаче.
type MinioInfrastructure struct {
	minioRepo         usecase.ImageRepository
	bucket            string
	uploadImagesLimit int
	cleanupBackoff    time.Duration
	logger            logger.Logger
	shutdownCtx       context.Context
	wg                sync.WaitGroup
}

func NewMinioInfrastructure(minioRepo usecase.ImageRepository, cfg *cfg.MinIOCfg, logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	return &MinioInfrastructure{
		minioRepo:         minioRepo,
		bucket:            cfg.BucketName,
		uploadImagesLimit: max(1, cfg.UploadImagesLimit),
		cleanupBackoff:    cleanupBackoff,
		logger:            logger,
		shutdownCtx:       shutdownCtx,
	}
}

type uploaded struct {
	index int
	key   string
}

// UploadImages загружает изображения организации в MinIO параллельно с ограничением одновременных операций.
// В случае ошибки отменяет остальные загрузки и запускает очистку уже загруженных файлов.
func (m *MinioInfrastructure) UploadImages(ctx context.Context, req *usecase.UploadImagesReq) (*usecase.UploadImagesRes, error) {
	const op = "MinioInfrastructure.UploadImages"
	// Отмена остальных загрузок при первой ошибке
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keyCh := make(chan uploaded, len(req.Items))
	errCh := make(chan error, len(req.Items))
	sem := make(chan struct{}, m.uploadImagesLimit)

	var uploadWg sync.WaitGroup
	for _, item := range req.Items {
		uploadWg.Add(1)
		go func() {
			defer uploadWg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			defer func() { <-sem }()

			key, err := m.uploadItem(ctx, req.OrganisationID, item)
			if err != nil {
				errCh <- err
				return
			}

			keyCh <- uploaded{index: item.Index, key: key}
		}()
	}

	keys := make(map[int]string, len(req.Items))
	ok := false
	defer func() {
		if ok {
			return
		}
		// дожидаемся уже начатых загрузок, чтобы удалить всё, что успело попасть в бакет
		uploadWg.Wait()
		close(keyCh)
		for u := range keyCh {
			keys[u.index] = u.key
		}
		m.CleanupImages(keyList(keys))
	}()

	for completed := 0; completed < len(req.Items); completed++ {
		select {
		case u := <-keyCh:
			keys[u.index] = u.key
		case err := <-errCh:
			cancel()
			return nil, e.Wrap(op, err)
		}
	}

	ok = true
	m.logger.Debugf("%s: archived %d images for organisation %s", op, len(keys), req.OrganisationID)
	return usecase.NewUploadImagesRes(keys), nil
}

func (m *MinioInfrastructure) uploadItem(ctx context.Context, organisationID string, item domain.InputItem) (string, error) {
	ext, err := infrastructure.GetExtensionFromMIME(item.MimeType)
	if err != nil {
		return "", fmt.Errorf("invalid mime type %s for %s: %w", item.MimeType, item.Label(), err)
	}

	imageID := uuid.NewString()
	objKey := fmt.Sprintf("%s/%s-%s.%s", organisationID, strings.TrimSuffix(item.Label(), ".jpg"), imageID, ext)
	image := domain.NewImage(imageID, m.bucket, objKey, item.Data, item.MimeType)

	key, err := m.minioRepo.Upload(ctx, image)
	if err != nil {
		return "", fmt.Errorf("upload %s failed: %w", item.Label(), err)
	}

	return key, nil
}

// CleanupImages запускает фоновую очистку указанных ключей MinIO
func (m *MinioInfrastructure) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}
	m.wg.Add(1)
	go m.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет указанные объекты из MinIO с экспоненциальной задержкой и jitter.
func (m *MinioInfrastructure) cleanupUploadedKeys(keys []string) {
	defer m.wg.Done()
	const op = "MinioInfrastructure.cleanupUploadedKeys"
	m.logger.Infof("%s: cleaning up %d uploaded keys", op, len(keys))

	ctx, cancel := context.WithTimeout(m.shutdownCtx, cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < cleanupAttempts; attempt++ {
			err := m.minioRepo.Delete(ctx, key)
			if err == nil {
				break
			}

			if ctx.Err() != nil {
				m.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			}

			if attempt == cleanupAttempts-1 {
				m.logger.Errorf(err, "%s: giving up on key %s", op, key)
				break
			}

			select {
			case <-time.After(jitter.Exponential(m.cleanupBackoff, cleanupTimeout, attempt, jitter.DefaultFactor)):
			case <-ctx.Done():
				m.logger.Warnf("cleanup interrupted by shutdown during backoff, key=%v", key)
				return
			}
		}
	}
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}

func keyList(keys map[int]string) []string {
	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k)
	}
	return list
}
