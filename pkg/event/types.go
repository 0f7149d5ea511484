// Package event はコアサービスが記録するドメインイベントの型を定義する。
package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

// AggregateTypeUser はユーザーエンティティを表す。
const AggregateTypeUser AggregateType = "User"

// Type はイベントの種類を表す。
type Type string

// TypeUserRegistered は新しいユーザーが登録されたことを表す。
const TypeUserRegistered Type = "UserRegistered"

// Event はアウトボックスに記録される不変のイベントレコードを表す。
type Event struct {
	// ID はイベントの一意識別子（UUID）。購読側の重複排除に使う。
	ID string `json:"eventId"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregateId"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregateType"`
	// EventType はイベントの種類。
	EventType Type `json:"eventType"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// OccurredAt はイベントが発生した日時。
	OccurredAt time.Time `json:"occurredAt"`
}

// UserRegisteredData はUserRegisteredイベントのデータ。
type UserRegisteredData struct {
	// UserID は登録されたユーザーのID。
	UserID string `json:"userId"`
	// Email は登録されたメールアドレス。
	Email string `json:"email"`
}
