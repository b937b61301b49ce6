package service

import (
	"context"
	"time"

	"labbooking/internal/model"
	"labbooking/internal/repository"
)

const topItemsLimit = 5

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error)
}

type statisticsService struct {
	statsRepo repository.StatisticsRepository
}

func NewStatisticsService(statsRepo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{statsRepo: statsRepo}
}

// GetStatistics aggregates requests and settled payments inside [startDate, endDate]
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error) {
	if endDate.Before(startDate) {
		return model.StatisticsResponse{}, validationError("end_date must not be before start_date")
	}

	response := model.StatisticsResponse{
		RequestsByStatus: map[string]int64{
			model.RequestStatusPendingPayment: 0,
			model.RequestStatusPendingReview:  0,
			model.RequestStatusApproved:       0,
			model.RequestStatusRejected:       0,
			model.RequestStatusCancelled:      0,
		},
		TopItems:           []model.ItemRanking{},
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
	}

	counts, err := s.statsRepo.CountRequestsByStatus(ctx, startDate, endDate)
	if err != nil {
		return model.StatisticsResponse{}, upstreamError("failed to load request counts", err)
	}
	for _, c := range counts {
		response.RequestsByStatus[c.Status] = c.Count
		response.TotalRequests += c.Count
	}

	response.PaidRevenue, response.PaidPayments, err = s.statsRepo.PaidRevenue(ctx, startDate, endDate)
	if err != nil {
		return model.StatisticsResponse{}, upstreamError("failed to load revenue", err)
	}

	top, err := s.statsRepo.TopItems(ctx, startDate, endDate, topItemsLimit)
	if err != nil {
		return model.StatisticsResponse{}, upstreamError("failed to load top items", err)
	}
	if top != nil {
		response.TopItems = top
	}

	return response, nil
}
