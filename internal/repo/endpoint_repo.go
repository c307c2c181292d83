package repo

import (
	"context"
	"strings"

	"github.com/dushixiang/apiping/internal/models"
	"github.com/go-errors/errors"
	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey 唯一约束冲突
	ErrDuplicateKey = errors.New("duplicate key")
)

// EndpointQuery 端点查询条件
type EndpointQuery struct {
	Name      string
	Provider  models.Provider
	Status    models.EndpointStatus
	IsActive  *bool
	Tags      string
	CreatedBy string
	Search    string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// endpointSortColumns 允许排序的字段
var endpointSortColumns = map[string]string{
	"name":            "name",
	"url":             "url",
	"provider":        "provider",
	"status":          "status",
	"intervalSeconds": "interval_seconds",
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
	"lastPingAt":      "last_ping_at",
	"nextPingAt":      "next_ping_at",
}

// EndpointRepo 端点数据访问层
type EndpointRepo struct {
	db *gorm.DB
}

// NewEndpointRepo 创建仓库
func NewEndpointRepo(db *gorm.DB) *EndpointRepo {
	return &EndpointRepo{db: db}
}

// Create 创建端点，URL 重复时返回 ErrDuplicateKey
func (r *EndpointRepo) Create(ctx context.Context, endpoint *models.Endpoint) error {
	return translate(r.db.WithContext(ctx).Create(endpoint).Error)
}

// Save 保存端点的全部字段
func (r *EndpointRepo) Save(ctx context.Context, endpoint *models.Endpoint) error {
	return translate(r.db.WithContext(ctx).Save(endpoint).Error)
}

// FindById 根据ID获取端点
func (r *EndpointRepo) FindById(ctx context.Context, id string) (models.Endpoint, error) {
	var endpoint models.Endpoint
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&endpoint).Error
	return endpoint, translate(err)
}

// FindByIds 根据ID批量获取端点
func (r *EndpointRepo) FindByIds(ctx context.Context, ids []string) ([]models.Endpoint, error) {
	var endpoints []models.Endpoint
	if len(ids) == 0 {
		return endpoints, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&endpoints).Error
	return endpoints, err
}

// FindByURL 根据 URL 获取端点，不存在时返回 nil
func (r *EndpointRepo) FindByURL(ctx context.Context, url string) (*models.Endpoint, error) {
	var endpoint models.Endpoint
	err := r.db.WithContext(ctx).Where("url = ?", url).First(&endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &endpoint, nil
}

// FindAll 按条件分页查询端点
func (r *EndpointRepo) FindAll(ctx context.Context, q EndpointQuery) ([]models.Endpoint, int64, error) {
	var endpoints []models.Endpoint
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Endpoint{})

	if q.Name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q.Name)+"%")
	}
	if q.Provider != "" {
		query = query.Where("provider = ?", q.Provider)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.IsActive != nil {
		query = query.Where("is_active = ?", *q.IsActive)
	}
	if q.Tags != "" {
		query = query.Where("CAST(tags AS TEXT) LIKE ?", "%"+q.Tags+"%")
	}
	if q.CreatedBy != "" {
		query = query.Where("created_by = ?", q.CreatedBy)
	}
	if q.Search != "" {
		keyword := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(url) LIKE ?", keyword, keyword, keyword)
	}

	// 统计总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := endpointSortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(q.SortOrder, "ASC") {
		order = "ASC"
	}

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	err := query.Order(column + " " + order).
		Limit(limit).
		Offset(offset).
		Find(&endpoints).Error

	return endpoints, total, err
}

// FindAllEndpoints 获取全部端点
func (r *EndpointRepo) FindAllEndpoints(ctx context.Context) ([]models.Endpoint, error) {
	var endpoints []models.Endpoint
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&endpoints).Error
	return endpoints, err
}

// FindByProvider 按提供商查询端点
func (r *EndpointRepo) FindByProvider(ctx context.Context, provider models.Provider) ([]models.Endpoint, error) {
	var endpoints []models.Endpoint
	err := r.db.WithContext(ctx).
		Where("provider = ?", provider).
		Order("name ASC").
		Find(&endpoints).Error
	return endpoints, err
}

// FindActive 查询生命周期为 active 且监控开关打开的端点
func (r *EndpointRepo) FindActive(ctx context.Context) ([]models.Endpoint, error) {
	var endpoints []models.Endpoint
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND status = ?", true, models.EndpointStatusActive).
		Order("name ASC").
		Find(&endpoints).Error
	return endpoints, err
}

// FindDue 查询到期需要探测的端点，nextPingAt 为空视为立即到期
func (r *EndpointRepo) FindDue(ctx context.Context, now int64) ([]models.Endpoint, error) {
	var endpoints []models.Endpoint
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND status = ?", true, models.EndpointStatusActive).
		Where("next_ping_at IS NULL OR next_ping_at <= ?", now).
		Order("next_ping_at ASC").
		Find(&endpoints).Error
	return endpoints, err
}

// CountDue 统计到期端点数量
func (r *EndpointRepo) CountDue(ctx context.Context, now int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Endpoint{}).
		Where("is_active = ? AND status = ?", true, models.EndpointStatusActive).
		Where("next_ping_at IS NULL OR next_ping_at <= ?", now).
		Count(&count).Error
	return count, err
}

// CountActive 统计满足调度条件的端点数量
func (r *EndpointRepo) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Endpoint{}).
		Where("is_active = ? AND status = ?", true, models.EndpointStatusActive).
		Count(&count).Error
	return count, err
}

// UpdateColumns 更新指定字段
func (r *EndpointRepo) UpdateColumns(ctx context.Context, id string, columns map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Endpoint{}).
		Where("id = ?", id).
		Updates(columns)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSchedule 更新调度时间
func (r *EndpointRepo) UpdateSchedule(ctx context.Context, id string, lastPingAt, nextPingAt int64) error {
	return r.UpdateColumns(ctx, id, map[string]interface{}{
		"last_ping_at": lastPingAt,
		"next_ping_at": nextPingAt,
	})
}

// DeleteWithResults 删除端点及其全部探测结果
func (r *EndpointRepo) DeleteWithResults(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := NewPingResultRepo(tx).DeleteByEndpoint(ctx, id); err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Endpoint{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// translate 将 gorm 错误转换为仓库层错误
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	case strings.Contains(strings.ToLower(err.Error()), "unique constraint"):
		return ErrDuplicateKey
	default:
		return err
	}
}
