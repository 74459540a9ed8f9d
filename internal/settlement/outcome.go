package settlement

import "binaryoptions/internal/models"

// Outcome вычисляет результат сделки по направлению и ценам.
//
// Правило симметрично по направлению:
//
//	call: цена выше входа - выигрыш, ниже - проигрыш, равна - ничья
//	put:  цена ниже входа - выигрыш, выше - проигрыш, равна - ничья
func Outcome(direction string, entryPrice, exitPrice float64) string {
	if exitPrice == entryPrice {
		return models.ResultDraw
	}

	priceUp := exitPrice > entryPrice

	if direction == models.DirectionCall {
		if priceUp {
			return models.ResultWin
		}
		return models.ResultLoss
	}

	// put
	if priceUp {
		return models.ResultLoss
	}
	return models.ResultWin
}

// ValidTransitions определяет допустимые переходы жизненного цикла сделки.
// Все переходы ведут из active в терминальное состояние; выхода из
// терминальных состояний нет.
var ValidTransitions = map[string][]string{
	models.TradeStatusActive: {
		models.TradeStatusWon,
		models.TradeStatusLost,
		models.TradeStatusCancelled,
	},
	models.TradeStatusWon:       {},
	models.TradeStatusLost:      {},
	models.TradeStatusCancelled: {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true для терминальных статусов
func IsTerminal(status string) bool {
	return status == models.TradeStatusWon ||
		status == models.TradeStatusLost ||
		status == models.TradeStatusCancelled
}

// StatusForResult возвращает терминальный статус для результата расчета
func StatusForResult(result string) string {
	switch result {
	case models.ResultWin:
		return models.TradeStatusWon
	case models.ResultLoss:
		return models.TradeStatusLost
	case models.ResultDraw:
		return models.TradeStatusCancelled
	default:
		return ""
	}
}
