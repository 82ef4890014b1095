package service

import (
	"context"
	"errors"
	"fmt"

	"dryengineer/internal/domain"
)

// Renderer produces an identity document for a user. icon may be nil.
type Renderer interface {
	Render(user domain.User, icon *domain.Asset) ([]byte, error)
}

// DocumentService builds user data sheets.
type DocumentService struct {
	auth     AuthService
	assets   AssetService
	renderer Renderer
}

func NewDocumentService(auth AuthService, assets AssetService, renderer Renderer) *DocumentService {
	return &DocumentService{auth: auth, assets: assets, renderer: renderer}
}

// UserSheet renders the data sheet of a user. A missing or unreadable
// profile image does not prevent rendering.
func (s *DocumentService) UserSheet(ctx context.Context, userID int64) ([]byte, error) {
	user, err := s.auth.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	icon, err := s.assets.Open(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNoAsset) && !errors.Is(err, ErrAssetRead) {
			return nil, err
		}
		icon = nil
	}

	doc, err := s.renderer.Render(*user, icon)
	if err != nil {
		return nil, fmt.Errorf("render user sheet: %w", err)
	}
	return doc, nil
}
