// Package repository 数据访问层
package repository

import "gorm.io/gorm"

// Repositories 仓库集合，用于统一管理所有仓库
type Repositories struct {
	DB        *gorm.DB // 直接访问数据库
	Auth      *AuthRepository
	Tenant    *TenantRepository
	File      *FileRepository
	Rule      *RuleRepository
	Operation *OperationRepository
	Retrieval *RetrievalRepository
	Snapshot  *SnapshotRepository
	Scan      *ScanRepository
	Audit     *AuditRepository
}

// NewRepositories 创建所有仓库
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:        db,
		Auth:      NewAuthRepository(db),
		Tenant:    NewTenantRepository(db),
		File:      NewFileRepository(db),
		Rule:      NewRuleRepository(db),
		Operation: NewOperationRepository(db),
		Retrieval: NewRetrievalRepository(db),
		Snapshot:  NewSnapshotRepository(db),
		Scan:      NewScanRepository(db),
		Audit:     NewAuditRepository(db),
	}
}
