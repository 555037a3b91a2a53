package constants

const (
	// Outbox 事件类型
	EventAnalysisJobCreated = "analysis.job.created"

	// 对象存储中简历原件的路径格式: resume/{jobID}/original{.ext}
	DocumentObjectFormat = "resume/%s/original%s"

	// 请求上下文中保存调用者身份的键
	ContextKeyOwnerID = "owner_id"

	// 失败原因
	ReasonDocumentUnavailable = "document storage unavailable"
	ReasonUnreadableDocument  = "could not read the uploaded document"
	ReasonCatalogUnavailable  = "job catalog unavailable"
	ReasonEmptyCatalog        = "job catalog returned no postings"
	ReasonNoPostingScored     = "no posting could be scored"
	ReasonProcessingTimedOut  = "processing timed out"
)
