package resumes

const (
	fieldUserID         = "userId"
	fieldName           = "name"
	fieldCreatedAt      = "createdAt"
	fieldUpdatedAt      = "updatedAt"
	fieldTemplateType   = "templateType"
	fieldColor          = "color"
	fieldIsDeleted      = "isDeleted"
	fieldScreenshotURL  = "screenshotUrl"
	fieldScreenshotURLs = "screenshotUrls"

	fieldContent = "meta_data"
	fieldChat    = "chat"
)

// timeLayout is ISO-8601 with millisecond precision, always UTC.
const timeLayout = "2006-01-02T15:04:05.000Z"

func resumeKey(id string) string {
	return "resume:" + id
}

func userResumesKey(userID string) string {
	return "user:" + userID + ":resumes"
}

func userDataKey(userID, resumeID string) string {
	return "user_data:" + userID + ":" + resumeID
}
