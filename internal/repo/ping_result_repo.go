package repo

import (
	"context"
	"strings"

	"github.com/dushixiang/apiping/internal/models"
	"gorm.io/gorm"
)

// ResultQuery 探测结果查询条件
type ResultQuery struct {
	EndpointID      string
	Status          models.PingStatus
	IsSuccess       *bool
	MinResponseTime *int64
	MaxResponseTime *int64
	HTTPStatusCode  *int
	StartTime       int64 // 毫秒
	EndTime         int64 // 毫秒
	SortBy          string
	SortOrder       string
	Limit           int
	Offset          int
}

var resultSortColumns = map[string]string{
	"createdAt":      "created_at",
	"responseTimeMs": "response_time_ms",
	"status":         "status",
	"httpStatusCode": "http_status_code",
}

// PingResultRepo 探测结果数据访问层，只追加不修改
type PingResultRepo struct {
	db *gorm.DB
}

// NewPingResultRepo 创建仓库
func NewPingResultRepo(db *gorm.DB) *PingResultRepo {
	return &PingResultRepo{db: db}
}

// Create 保存探测结果
func (r *PingResultRepo) Create(ctx context.Context, result *models.PingResult) error {
	return translate(r.db.WithContext(ctx).Create(result).Error)
}

// MarkAlertSent 标记结果已触发通知
func (r *PingResultRepo) MarkAlertSent(ctx context.Context, id string) error {
	return translate(r.db.WithContext(ctx).Model(&models.PingResult{}).
		Where("id = ?", id).
		Update("alert_sent", true).Error)
}

// FindById 根据ID获取探测结果
func (r *PingResultRepo) FindById(ctx context.Context, id string) (models.PingResult, error) {
	var result models.PingResult
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&result).Error
	return result, translate(err)
}

// FindByEndpointSince 查询端点在 since 之后的结果，按时间升序
func (r *PingResultRepo) FindByEndpointSince(ctx context.Context, endpointID string, since int64) ([]models.PingResult, error) {
	var results []models.PingResult
	err := r.db.WithContext(ctx).
		Where("endpoint_id = ? AND created_at >= ?", endpointID, since).
		Order("created_at ASC").
		Find(&results).Error
	return results, err
}

// FindSince 查询所有端点在 since 之后的结果，按时间升序
func (r *PingResultRepo) FindSince(ctx context.Context, since int64) ([]models.PingResult, error) {
	var results []models.PingResult
	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Find(&results).Error
	return results, err
}

// FindBetween 查询时间范围内的结果，endpointIDs 为空时不限制端点
func (r *PingResultRepo) FindBetween(ctx context.Context, endpointIDs []string, start, end int64) ([]models.PingResult, error) {
	var results []models.PingResult
	query := r.db.WithContext(ctx).Where("created_at >= ? AND created_at <= ?", start, end)
	if len(endpointIDs) > 0 {
		query = query.Where("endpoint_id IN ?", endpointIDs)
	}
	err := query.Order("created_at ASC").Find(&results).Error
	return results, err
}

// FindRecentByEndpoint 查询端点最近的结果，按时间倒序
func (r *PingResultRepo) FindRecentByEndpoint(ctx context.Context, endpointID string, limit int) ([]models.PingResult, error) {
	var results []models.PingResult
	err := r.db.WithContext(ctx).
		Where("endpoint_id = ?", endpointID).
		Order("created_at DESC").
		Order("attempt_number DESC").
		Limit(limit).
		Find(&results).Error
	return results, err
}

// FindRecentSuccessfulByEndpoint 查询端点最近的成功结果，按时间倒序
func (r *PingResultRepo) FindRecentSuccessfulByEndpoint(ctx context.Context, endpointID string, limit int) ([]models.PingResult, error) {
	var results []models.PingResult
	err := r.db.WithContext(ctx).
		Where("endpoint_id = ? AND is_success = ?", endpointID, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error
	return results, err
}

// FindPage 按条件分页查询结果
func (r *PingResultRepo) FindPage(ctx context.Context, q ResultQuery) ([]models.PingResult, int64, error) {
	var results []models.PingResult
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PingResult{})

	if q.EndpointID != "" {
		query = query.Where("endpoint_id = ?", q.EndpointID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.IsSuccess != nil {
		query = query.Where("is_success = ?", *q.IsSuccess)
	}
	if q.MinResponseTime != nil {
		query = query.Where("response_time_ms >= ?", *q.MinResponseTime)
	}
	if q.MaxResponseTime != nil {
		query = query.Where("response_time_ms <= ?", *q.MaxResponseTime)
	}
	if q.HTTPStatusCode != nil {
		query = query.Where("http_status_code = ?", *q.HTTPStatusCode)
	}
	if q.StartTime > 0 {
		query = query.Where("created_at >= ?", q.StartTime)
	}
	if q.EndTime > 0 {
		query = query.Where("created_at <= ?", q.EndTime)
	}

	// 统计总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := resultSortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(q.SortOrder, "ASC") {
		order = "ASC"
	}

	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	// 同一时间的多次重试按尝试次数排序
	err := query.Order(column + " " + order).
		Order("attempt_number " + order).
		Limit(limit).
		Offset(offset).
		Find(&results).Error

	return results, total, err
}

// CountByEndpoint 统计端点的结果数量
func (r *PingResultRepo) CountByEndpoint(ctx context.Context, endpointID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PingResult{}).
		Where("endpoint_id = ?", endpointID).
		Count(&count).Error
	return count, err
}

// CountSince 统计 since 之后的结果数量，onlyFailed 为 true 时只统计失败结果
func (r *PingResultRepo) CountSince(ctx context.Context, since int64, onlyFailed bool) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.PingResult{}).Where("created_at >= ?", since)
	if onlyFailed {
		query = query.Where("is_success = ?", false)
	}
	err := query.Count(&count).Error
	return count, err
}

// DeleteByEndpoint 删除端点的全部结果，返回删除数量
func (r *PingResultRepo) DeleteByEndpoint(ctx context.Context, endpointID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("endpoint_id = ?", endpointID).Delete(&models.PingResult{})
	return result.RowsAffected, result.Error
}

// FindForExport 按时间升序导出结果，endpointID 为空时导出全部端点
func (r *PingResultRepo) FindForExport(ctx context.Context, endpointID string, start, end int64, limit int) ([]models.PingResult, error) {
	var results []models.PingResult
	query := r.db.WithContext(ctx)
	if endpointID != "" {
		query = query.Where("endpoint_id = ?", endpointID)
	}
	if start > 0 {
		query = query.Where("created_at >= ?", start)
	}
	if end > 0 {
		query = query.Where("created_at <= ?", end)
	}
	if limit <= 0 {
		limit = 10000
	}
	err := query.Order("created_at ASC").
		Order("attempt_number ASC").
		Limit(limit).
		Find(&results).Error
	return results, err
}
