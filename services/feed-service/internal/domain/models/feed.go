package models

import "github.com/athebyme/gomarket-platform/pkg/utils"

// Progress событие прогресса сборки
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent возвращает процент выполнения, пустой фид считается готовым
func (p Progress) Percent() int {
	return utils.Percent(p.Completed, p.Total)
}

// Done сообщает, что обработаны все варианты
func (p Progress) Done() bool {
	return p.Completed == p.Total
}

// BuildPayload задача сборки фида
type BuildPayload struct {
	TenantID string `json:"tenant_id"`
}

// BuildResult результат успешной сборки
type BuildResult struct {
	Success    bool `json:"success"`
	TotalCount int  `json:"total_count"`
}

// UploadPayload задача выгрузки фида на удаленный сервер
type UploadPayload struct {
	TenantID string `json:"tenant_id"`
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
}

// UploadResult результат выгрузки
type UploadResult struct {
	File string `json:"file"`
}

// FeedLocation расположение текущего файла фида
type FeedLocation struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
}

// FeedFile содержимое фида для отдачи по URL
type FeedFile struct {
	FileName    string
	ContentType string
	Data        []byte
}
