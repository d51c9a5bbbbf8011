package vision

import (
	"context"

	"github.com/gin-gonic/gin"
)

// VisionService 定义分析服务接口
type VisionService interface {
	// 将分析相关路由注册到 engine 与 apiGroup
	Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error
}
