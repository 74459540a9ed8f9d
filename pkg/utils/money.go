package utils

import (
	"math"
)

// money.go - денежная арифметика
//
// Балансы и суммы хранятся как float64 в единицах валюты счета.
// Все публичные суммы приводятся к центам, чтобы последовательность
// операций не накапливала хвосты двоичного представления.

// RoundMoney округляет сумму до центов (2 знака, к ближайшему)
func RoundMoney(value float64) float64 {
	return math.Round(value*100) / 100
}

// RoundPrice округляет котировку до заданного числа знаков
func RoundPrice(value float64, decimals int) float64 {
	if decimals < 0 {
		return value
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(value*pow) / pow
}

// PercentOf возвращает percent процентов от суммы, округленные до центов
func PercentOf(amount, percent float64) float64 {
	return RoundMoney(amount * percent / 100)
}

// ChangePercent возвращает относительное изменение в процентах.
// При нулевой базе возвращает 0 - деление на ноль здесь не ошибка,
// а отсутствие истории цены.
func ChangePercent(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}
