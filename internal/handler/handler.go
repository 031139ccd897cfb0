// Package handler 提供 HTTP 处理器
package handler

import (
	"github.com/mspkit/tierkeep/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Auth      *AuthHandler
	Tenant    *TenantHandler
	Rule      *RuleHandler
	Operation *OperationHandler
	Retrieval *RetrievalHandler
	Snapshot  *SnapshotHandler
	System    *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Auth:      NewAuthHandler(svc),
		Tenant:    NewTenantHandler(svc),
		Rule:      NewRuleHandler(svc),
		Operation: NewOperationHandler(svc),
		Retrieval: NewRetrievalHandler(svc),
		Snapshot:  NewSnapshotHandler(svc),
		System:    NewSystemHandler(svc),
	}
}
