package service

import (
	"strings"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
)

// ClassifyTitle decides what kind of document a title names. Matching is
// case-insensitive substring; judgment keywords win over complaint
// keywords when a title matches both.
func ClassifyTitle(title string, judgmentKeywords, complaintKeywords []string) model.DocumentType {
	upper := strings.ToUpper(title)

	for _, kw := range judgmentKeywords {
		if kw != "" && strings.Contains(upper, strings.ToUpper(kw)) {
			return model.DocTypeFinalJudgment
		}
	}
	for _, kw := range complaintKeywords {
		if kw != "" && strings.Contains(upper, strings.ToUpper(kw)) {
			return model.DocTypeComplaint
		}
	}
	return model.DocTypeUnrelated
}
