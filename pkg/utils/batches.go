package utils

// Batch описывает одну страницу выборки
type Batch struct {
	Index     int // Номер пакета (с 0)
	Offset    int // Смещение для запроса
	Limit     int // Размер страницы
	Completed int // Количество обработанных элементов после этого пакета
	Last      bool
}

// BatchPlan разбивает выборку из Total элементов на пакеты по Size
type BatchPlan struct {
	Total int `json:"total"`
	Size  int `json:"size"`
}

// NewBatchPlan создает план; размер меньше 1 заменяется на 1
func NewBatchPlan(total, size int) BatchPlan {
	if size < 1 {
		size = 1
	}
	if total < 0 {
		total = 0
	}
	return BatchPlan{Total: total, Size: size}
}

// Count возвращает число пакетов: ceil(Total / Size)
func (p BatchPlan) Count() int {
	return (p.Total + p.Size - 1) / p.Size
}

// Batches возвращает пакеты по порядку. Для Total == 0 список пуст.
func (p BatchPlan) Batches() []Batch {
	n := p.Count()
	batches := make([]Batch, 0, n)
	for i := 0; i < n; i++ {
		batches = append(batches, Batch{
			Index:     i,
			Offset:    i * p.Size,
			Limit:     p.Size,
			Completed: min((i+1)*p.Size, p.Total),
			Last:      i == n-1,
		})
	}
	return batches
}

// Percent возвращает ceil(completed/total*100); пустая выборка считается завершенной
func Percent(completed, total int) int {
	if total <= 0 {
		return 100
	}
	if completed >= total {
		return 100
	}
	if completed <= 0 {
		return 0
	}
	return (completed*100 + total - 1) / total
}
