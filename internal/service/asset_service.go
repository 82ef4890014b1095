package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"dryengineer/internal/domain"
	"dryengineer/internal/repository"
	"dryengineer/internal/storage"
)

// EncodedAsset is an asset in its text-safe wire form.
type EncodedAsset struct {
	Filename string `json:"filename"`
	Data     string `json:"base64data"`
}

// AssetService moves profile images between clients, the asset store and
// the owning user record.
type AssetService interface {
	Store(ctx context.Context, filename, encoded string, ownerID int64) (string, error)
	Retrieve(ctx context.Context, ownerID int64) (*EncodedAsset, error)
	Open(ctx context.Context, ownerID int64) (*domain.Asset, error)
}

type assetService struct {
	users  repository.UserRepository
	assets storage.Service
}

func NewAssetService(users repository.UserRepository, assets storage.Service) AssetService {
	return &assetService{users: users, assets: assets}
}

// Store writes the blob first and links it second; a failed link leaves the
// blob in place.
func (s *assetService) Store(ctx context.Context, filename, encoded string, ownerID int64) (string, error) {
	key, err := storage.CleanKey(filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}
	data, err := DecodeAsset(encoded)
	if err != nil {
		return "", err
	}

	if err := s.assets.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssetWrite, err)
	}

	if err := s.users.UpdateIcon(ctx, ownerID, key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: %w", ErrAssetLink, ErrUserNotFound)
		}
		return "", fmt.Errorf("%w: %v", ErrAssetLink, err)
	}
	return key, nil
}

func (s *assetService) Retrieve(ctx context.Context, ownerID int64) (*EncodedAsset, error) {
	asset, err := s.Open(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &EncodedAsset{
		Filename: asset.Filename,
		Data:     base64.StdEncoding.EncodeToString(asset.Data),
	}, nil
}

func (s *assetService) Open(ctx context.Context, ownerID int64) (*domain.Asset, error) {
	user, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if user.Icon == "" {
		return nil, ErrNoAsset
	}

	data, err := s.assets.Get(ctx, user.Icon)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s is missing", ErrAssetRead, user.Icon)
		}
		return nil, fmt.Errorf("%w: %v", ErrAssetRead, err)
	}
	return &domain.Asset{Filename: user.Icon, Data: data}, nil
}

// DecodeAsset accepts plain base64 or a data URL.
func DecodeAsset(encoded string) ([]byte, error) {
	payload := strings.TrimSpace(encoded)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 || !strings.HasSuffix(payload[:idx], ";base64") {
			return nil, fmt.Errorf("%w: unsupported data url", ErrInvalidAsset)
		}
		payload = payload[idx+1:]
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidAsset)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// some browsers strip padding
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}
	return data, nil
}
