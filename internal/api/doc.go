// Package api 處理 HTTP 請求路由。
//
// 路由分成公開、參與者與管理員三組，處理器（handlers）把請求轉換為服務調用，
// 並將服務層錯誤轉換為 {"error", "code"} 格式的 JSON 響應。
package api
