// Package middleware 提供了 HTTP 請求處理的中間件。
//
// 目前包含 JWT 身份驗證以及參與者、管理員兩種角色的權限檢查。
package middleware
