// Package password — генерация, хеширование и проверка паролей
// администраторов. Хеш — bcrypt (соль и стоимость внутри хеша),
// генерация — только crypto/rand. math/rand здесь запрещён.
package password

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinLength — минимальная длина пароля администратора.
const MinLength = 8

const (
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars   = "0123456789"
	specialChars = "!@#$%^&*()-_=+"
)

var allChars = lowerChars + upperChars + digitChars + specialChars

// ErrEmptyPassword — попытка захешировать пустой пароль.
// Падаем громко: молча обрезать или подменять вход нельзя.
var ErrEmptyPassword = errors.New("пароль не может быть пустым")

// Generate создаёт криптографически случайный пароль длиной length.
// Гарантирует минимум одну строчную, одну заглавную букву, одну цифру
// и один спецсимвол: перегенерирует, пока все классы не встретятся.
func Generate(length int) (string, error) {
	if length < MinLength {
		return "", fmt.Errorf("длина пароля должна быть не меньше %d", MinLength)
	}

	for {
		b := make([]byte, length)
		for i := range b {
			idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(allChars))))
			if err != nil {
				return "", fmt.Errorf("ошибка генерации пароля: %w", err)
			}
			b[i] = allChars[idx.Int64()]
		}

		candidate := string(b)
		if strings.ContainsAny(candidate, lowerChars) &&
			strings.ContainsAny(candidate, upperChars) &&
			strings.ContainsAny(candidate, digitChars) &&
			strings.ContainsAny(candidate, specialChars) {
			return candidate, nil
		}
	}
}

// Hash возвращает bcrypt-хеш пароля.
func Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хеширования пароля: %w", err)
	}
	return string(hash), nil
}

// Verify проверяет пароль по хешу. Сравнение делает сам bcrypt —
// оно устойчиво к timing-атакам.
func Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
