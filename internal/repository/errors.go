package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate は一意制約違反を表す。
var ErrDuplicate = errors.New("duplicate key")

// ErrReferenceNotFound は外部キーの参照先が存在しないことを表す。
var ErrReferenceNotFound = errors.New("referenced row not found")

// PostgreSQLのエラーコード
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pqCodeUniqueViolation     = pq.ErrorCode("23505")
	pqCodeForeignKeyViolation = pq.ErrorCode("23503")
	pqCodeInvalidText         = pq.ErrorCode("22P02")
)

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == pqCodeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pqCode(err) == pqCodeForeignKeyViolation
}

// isInvalidID はUUID列に不正な形式のIDを渡した場合のエラーかどうかを返す。
// 形式不正のIDは「見つからない」として扱う。
func isInvalidID(err error) bool {
	return pqCode(err) == pqCodeInvalidText
}
