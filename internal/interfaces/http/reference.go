package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/reception-workflow/internal/application/port"
)

// PatientRequest is the body of PUT /patients/:patientId
type PatientRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Active   *bool  `json:"active"`
}

// PlanRequest is the body of PUT /insurance-plans/:planId
type PlanRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
	Active     *bool  `json:"active"`
}

// ImportPatient is one patient row of a bulk import
type ImportPatient struct {
	PatientID string `json:"patient_id" binding:"required"`
	PatientRequest
}

// ImportPlan is one plan row of a bulk import
type ImportPlan struct {
	PlanID string `json:"plan_id" binding:"required"`
	PlanRequest
}

// ReferenceDataRequest is the body of POST /reference-data
type ReferenceDataRequest struct {
	Patients []ImportPatient `json:"patients" binding:"dive"`
	Plans    []ImportPlan    `json:"plans" binding:"dive"`
}

// ImportResult counts the rows written by a bulk import
type ImportResult struct {
	Patients int `json:"patients"`
	Plans    int `json:"plans"`
}

// UpsertPatient handles PUT /api/v1/patients/:patientId
func (h *Handlers) UpsertPatient(c *gin.Context) {
	if h.services.Patients == nil {
		h.unavailable(c, "patient directory")
		return
	}

	var req PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	patientID := c.Param("patientId")
	if err := h.services.Patients.Upsert(c.Request.Context(), patientID, req.FullName, activeOrDefault(req.Active)); err != nil {
		h.internalError(c, "Failed to upsert patient", err, "patient_id", patientID)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"patient_id": patientID}})
}

// UpsertPlan handles PUT /api/v1/insurance-plans/:planId
func (h *Handlers) UpsertPlan(c *gin.Context) {
	if h.services.Plans == nil {
		h.unavailable(c, "insurance catalog")
		return
	}

	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	plan := toPlan(c.Param("planId"), req)
	if err := h.services.Plans.Upsert(c.Request.Context(), plan); err != nil {
		h.internalError(c, "Failed to upsert insurance plan", err, "plan_id", plan.PlanID)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: plan})
}

// ImportReferenceData handles POST /api/v1/reference-data. All rows are
// written in one transaction.
func (h *Handlers) ImportReferenceData(c *gin.Context) {
	if h.services.Patients == nil || h.services.Plans == nil || h.services.Tx == nil {
		h.unavailable(c, "reference data import")
		return
	}

	var req ReferenceDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	err := h.services.Tx.WithTransaction(c.Request.Context(), func(ctx context.Context) error {
		for _, p := range req.Patients {
			if err := h.services.Patients.Upsert(ctx, p.PatientID, p.FullName, activeOrDefault(p.Active)); err != nil {
				return err
			}
		}
		for _, p := range req.Plans {
			if err := h.services.Plans.Upsert(ctx, toPlan(p.PlanID, p.PlanRequest)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.internalError(c, "Reference data import rolled back", err,
			"patients", len(req.Patients),
			"plans", len(req.Plans),
		)
		return
	}

	h.logger.Info("Reference data imported", "patients", len(req.Patients), "plans", len(req.Plans))
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    ImportResult{Patients: len(req.Patients), Plans: len(req.Plans)},
	})
}

func toPlan(planID string, req PlanRequest) port.InsurancePlan {
	return port.InsurancePlan{
		PlanID:     planID,
		ProviderID: req.ProviderID,
		Active:     activeOrDefault(req.Active),
	}
}

func activeOrDefault(active *bool) bool {
	return active == nil || *active
}
