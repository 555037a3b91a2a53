package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// UploadModulePrefix 上传模块
	UploadModulePrefix = "upload"
	// PostingModulePrefix 岗位目录模块
	PostingModulePrefix = "posting"

	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityCatalog 岗位目录缓存实体
	EntityCatalog = "catalog"

	// KeyUploadLock 同一用户的上传互斥锁 (STRING)
	// 格式: app:upload:lock:{ownerID}
	KeyUploadLock = AppPrefix + ":" + UploadModulePrefix + ":" + EntityLock + ":%s"

	// KeyPostingCatalog 解析后的岗位列表缓存 (STRING, JSON)
	// 格式: app:posting:catalog:{sourceHash}
	KeyPostingCatalog = AppPrefix + ":" + PostingModulePrefix + ":" + EntityCatalog + ":%s"
)
