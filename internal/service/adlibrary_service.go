package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

// AdLibraryService 广告库收藏夹
type AdLibraryService struct {
	libRepo *repository.AdLibraryRepository
	fbRepo  *repository.FacebookRepository
	graph   *facebook.Client
	now     func() time.Time
}

func NewAdLibraryService(libRepo *repository.AdLibraryRepository, fbRepo *repository.FacebookRepository, graph *facebook.Client) *AdLibraryService {
	return &AdLibraryService{
		libRepo: libRepo,
		fbRepo:  fbRepo,
		graph:   graph,
		now:     time.Now,
	}
}

func (s *AdLibraryService) ListCollections(ctx context.Context, userID int64) ([]*model.AdCollection, error) {
	return s.libRepo.ListCollectionsByUser(ctx, userID)
}

func (s *AdLibraryService) CreateCollection(ctx context.Context, userID int64, req *dto.CreateCollectionRequest) (*model.AdCollection, error) {
	collection := &model.AdCollection{
		UserID:      userID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		IsPublic:    req.IsPublic,
	}
	if err := s.libRepo.CreateCollection(ctx, collection); err != nil {
		return nil, err
	}
	return collection, nil
}

// GetCollection 自己的或公开的收藏夹，含广告列表
func (s *AdLibraryService) GetCollection(ctx context.Context, userID, id int64) (*model.AdCollection, error) {
	collection, err := s.libRepo.GetCollectionWithItems(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	if collection.UserID != userID && !collection.IsPublic {
		return nil, ErrCollectionNotFound
	}
	return collection, nil
}

func (s *AdLibraryService) UpdateCollection(ctx context.Context, userID, id int64, req *dto.UpdateCollectionRequest) (*model.AdCollection, error) {
	collection, err := s.ownedCollection(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		collection.Name = strings.TrimSpace(*req.Name)
		fields["name"] = collection.Name
	}
	if req.Description != nil {
		collection.Description = *req.Description
		fields["description"] = collection.Description
	}
	if req.IsPublic != nil {
		collection.IsPublic = *req.IsPublic
		fields["is_public"] = collection.IsPublic
	}
	if len(fields) == 0 {
		return collection, nil
	}

	if err := s.libRepo.UpdateCollectionFields(ctx, id, fields); err != nil {
		return nil, err
	}
	return collection, nil
}

func (s *AdLibraryService) DeleteCollection(ctx context.Context, userID, id int64) error {
	if _, err := s.ownedCollection(ctx, userID, id); err != nil {
		return err
	}
	return s.libRepo.DeleteCollection(ctx, id)
}

// AddAd 收藏广告：有有效令牌时从 Graph 补全详情，否则只记录广告 ID
func (s *AdLibraryService) AddAd(ctx context.Context, userID, collectionID int64, req *dto.AddCollectionAdRequest) (*model.AdCollectionItem, error) {
	if _, err := s.ownedCollection(ctx, userID, collectionID); err != nil {
		return nil, err
	}

	item, err := s.resolveItem(ctx, userID, req.FacebookAdID)
	if err != nil {
		return nil, err
	}

	exists, err := s.libRepo.ItemInCollection(ctx, collectionID, item.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAdAlreadyCollected
	}

	entry := &model.AdCollectionItem{
		CollectionID:    collectionID,
		AdLibraryItemID: item.ID,
		Notes:           req.Notes,
		AdLibraryItem:   item,
	}
	if err := s.libRepo.AddItem(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RemoveAd 按 Facebook 广告 ID 从收藏夹移除
func (s *AdLibraryService) RemoveAd(ctx context.Context, userID, collectionID int64, fbAdID string) error {
	if _, err := s.ownedCollection(ctx, userID, collectionID); err != nil {
		return err
	}

	item, err := s.libRepo.GetItemByFacebookAdID(ctx, fbAdID)
	if err != nil {
		if isNotFound(err) {
			return ErrCollectionAdAbsent
		}
		return err
	}
	removed, err := s.libRepo.RemoveItem(ctx, collectionID, item.ID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrCollectionAdAbsent
	}
	return nil
}

func (s *AdLibraryService) ownedCollection(ctx context.Context, userID, id int64) (*model.AdCollection, error) {
	collection, err := s.libRepo.GetCollection(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	if collection.UserID != userID {
		return nil, ErrCollectionNotFound
	}
	return collection, nil
}

// resolveItem 取回或创建广告库条目，Graph 失败时退回到已有记录或占位记录
func (s *AdLibraryService) resolveItem(ctx context.Context, userID int64, fbAdID string) (*model.AdLibraryItem, error) {
	now := s.now()
	if account, err := s.fbRepo.GetTokenAccount(ctx, userID, now); err == nil && account.TokenValid(now) {
		ad, err := s.graph.ArchivedAd(ctx, account.AccessToken, fbAdID)
		if err == nil {
			item := adLibraryItemFromGraph(fbAdID, ad)
			if err := s.libRepo.SaveItem(ctx, item); err != nil {
				return nil, err
			}
			return item, nil
		}
		log.Warn().Err(err).Str("facebook_ad_id", fbAdID).Msg("failed to fetch archived ad, storing stub")
	} else if err != nil && !isNotFound(err) {
		return nil, err
	}

	item, err := s.libRepo.GetItemByFacebookAdID(ctx, fbAdID)
	if err == nil {
		return item, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	item = &model.AdLibraryItem{FacebookAdID: fbAdID}
	if err := s.libRepo.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func adLibraryItemFromGraph(fbAdID string, ad *facebook.ArchivedAd) *model.AdLibraryItem {
	return &model.AdLibraryItem{
		FacebookAdID:      fbAdID,
		PageID:            ad.PageID,
		PageName:          ad.PageName,
		AdSnapshotURL:     ad.AdSnapshotURL,
		CreativeTitle:     truncate(firstOf(ad.AdCreativeLinkTitles), 500),
		CreativeBody:      firstOf(ad.AdCreativeBodies),
		DeliveryStartTime: facebook.ParseTime(ad.AdDeliveryStartTime),
		DeliveryStopTime:  facebook.ParseTime(ad.AdDeliveryStopTime),
		Raw:               string(ad.Raw),
	}
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
