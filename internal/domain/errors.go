package domain

import "errors"

// AgencyInUseMessage — текст для оператора, когда агентство нельзя удалить из-за существующих заказов.
const AgencyInUseMessage = "Cannot delete agency because there are items from this agency in existing orders."

var (
	// Ошибка отрицательного количества в корзине.
	ErrNegativeQuantity = errors.New("quantity must be non-negative")
	// Ошибка отсутствующего названия агентства.
	ErrAgencyNameRequired = errors.New("agency name is required")
	// Ошибка отсутствующего идентификатора агентства у позиции корзины.
	ErrAgencyIDRequired = errors.New("agency_id is required")
	// Ошибка отсутствующего названия товара у позиции корзины.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отсутствующего названия магазина.
	ErrShopNameRequired = errors.New("shop name is required")
	// ErrOrderNotSubmittable — не введено название магазина или корзина пуста.
	ErrOrderNotSubmittable = errors.New("order is not submittable: shop name and at least one line are required")
	// ErrInvalidStatus — неизвестный статус заказа.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrAgencyNotFound возвращается, если агентство не найдено.
	ErrAgencyNotFound = errors.New("agency not found")
	// ErrProductNotFound — товара нет в снимке каталога сессии.
	ErrProductNotFound = errors.New("product not found")
	// ErrShopNotFound возвращается, если магазин не найден.
	ErrShopNotFound = errors.New("shop not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrSessionNotFound возвращается, если сессия сборки заказа не найдена или истекла.
	ErrSessionNotFound = errors.New("builder session not found")
	// ErrAlreadyExists — запись с таким идентификатором уже есть.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrSubmissionInProgress — по этой сессии уже выполняется оформление заказа.
	ErrSubmissionInProgress = errors.New("order submission already in progress")
	// ErrConstraintViolation — запись нельзя изменить из-за зависимых записей (FK).
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrAgencyInUse — агентство нельзя удалить: его товары есть в заказах.
	ErrAgencyInUse = errors.New(AgencyInUseMessage)
	// ErrWriteFailed — общая ошибка записи в хранилище.
	ErrWriteFailed = errors.New("write failed")
	// ErrCatalogUnavailable — каталог не удалось загрузить (не путать с пустым каталогом).
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrOrdersUnavailable — список заказов не удалось загрузить (не путать с пустым списком).
	ErrOrdersUnavailable = errors.New("orders unavailable")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsConstraintViolation проверяет, заблокирована ли операция зависимыми записями.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

// IsNotFound объединяет все ошибки отсутствия записи.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAgencyNotFound) ||
		errors.Is(err, ErrShopNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsValidation возвращает true для ошибок некорректного ввода.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNegativeQuantity) ||
		errors.Is(err, ErrAgencyNameRequired) ||
		errors.Is(err, ErrAgencyIDRequired) ||
		errors.Is(err, ErrProductNameRequired) ||
		errors.Is(err, ErrShopNameRequired) ||
		errors.Is(err, ErrOrderNotSubmittable) ||
		errors.Is(err, ErrInvalidStatus)
}

// IsFetchFailure отличает сбой загрузки от пустого результата.
func IsFetchFailure(err error) bool {
	return errors.Is(err, ErrCatalogUnavailable) || errors.Is(err, ErrOrdersUnavailable)
}
