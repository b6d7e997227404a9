package pipeline

import "jobapply-workers/internal/models"

// Partition splits items into those the automated flow may submit and those
// that need an external application. Input order is kept in both slices.
func Partition(items []models.JobLead) (eligible, ineligible []models.JobLead) {
	eligible = make([]models.JobLead, 0, len(items))
	ineligible = make([]models.JobLead, 0)
	for _, item := range items {
		if item.CanApplyInApp {
			eligible = append(eligible, item)
		} else {
			ineligible = append(ineligible, item)
		}
	}
	return eligible, ineligible
}
