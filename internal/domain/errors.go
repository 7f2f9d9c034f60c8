package domain

import "fmt"

// ProviderRequestError — ошибка построения запроса к провайдеру. Три таких
// ошибки подряд считаются фатальными и останавливают воркер.
type ProviderRequestError struct {
	Category string
	Err      error
}

func (e *ProviderRequestError) Error() string {
	return fmt.Sprintf("провайдер: построение запроса %q: %v", e.Category, e.Err)
}

func (e *ProviderRequestError) Unwrap() error { return e.Err }

// ProviderFetchError — транспортная ошибка или не-2xx ответ. Категория
// пропускается в текущем цикле, остальные продолжаются.
type ProviderFetchError struct {
	Category   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("провайдер: выгрузка %q: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("провайдер: выгрузка %q: статус %d: %s", e.Category, e.StatusCode, e.Body)
}

func (e *ProviderFetchError) Unwrap() error { return e.Err }

// ProviderParseError — некорректный JSON в ответе провайдера. Прерывает
// весь цикл без фиксации частичных результатов.
type ProviderParseError struct {
	Category string
	Err      error
}

func (e *ProviderParseError) Error() string {
	return fmt.Sprintf("провайдер: разбор ответа %q: %v", e.Category, e.Err)
}

func (e *ProviderParseError) Unwrap() error { return e.Err }
