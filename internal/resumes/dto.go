package resumes

import "time"

type resumeResponse struct {
	ID             string     `json:"resumeId"`
	Name           string     `json:"name"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
	TemplateType   string     `json:"templateType"`
	Color          string     `json:"color"`
	IsDeleted      bool       `json:"isDeleted"`
	ScreenshotURL  string     `json:"screenshotUrl,omitempty"`
	ScreenshotURLs []string   `json:"screenshotUrls,omitempty"`
}

func toResponse(r Resume) resumeResponse {
	return resumeResponse{
		ID:             r.ID,
		Name:           r.Name,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		TemplateType:   r.TemplateType,
		Color:          r.Color,
		IsDeleted:      r.IsDeleted,
		ScreenshotURL:  r.ScreenshotURL,
		ScreenshotURLs: r.ScreenshotURLs,
	}
}

type createRequest struct {
	Name         string `json:"name"`
	TemplateType string `json:"templateType"`
	Color        string `json:"color"`
}

type updateRequest struct {
	Name         *string `json:"name"`
	TemplateType *string `json:"templateType"`
	Color        *string `json:"color"`
}
