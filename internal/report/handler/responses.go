package handler

import (
	"github.com/technerv/election-monitor/internal/report/models"
	"github.com/technerv/election-monitor/pkg/domain"
)

type SubmitReportResponse struct {
	ReportID domain.ReportID `json:"report_id"`
	Status   models.Status   `json:"status"`
}

type VerificationsResponse struct {
	ReportID domain.ReportID            `json:"report_id"`
	Events   []models.VerificationEvent `json:"events"`
}

type ReportListResponse struct {
	Reports []*models.Report `json:"reports"`
	Count   int              `json:"count"`
}

func newReportList(reports []*models.Report) ReportListResponse {
	if reports == nil {
		reports = []*models.Report{}
	}
	return ReportListResponse{Reports: reports, Count: len(reports)}
}
