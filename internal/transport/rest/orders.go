package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/service/idempotency"
)

const (
	jsonContentType = "application/json; charset=utf-8"
	dateLayout      = "2006-01-02"
)

// createOrder оформляет заказ. С заголовком Idempotency-Key повторный запрос
// с тем же телом получает сохранённый ответ первого.
func (h *Handler) createOrder(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, ErrMalformedBody)
		return
	}

	key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
	if key == "" || h.guard == nil {
		status, payload := h.placeOrder(c, body)
		c.Data(status, jsonContentType, payload)
		return
	}

	key = idempotency.ScopedKey(callerFrom(c).UserID, key)
	ctx := c.Request.Context()
	record, err := h.guard.Begin(ctx, key, idempotency.HashRequest(c.Request.Method, c.FullPath(), body))
	if err != nil {
		h.fail(c, err)
		return
	}
	if record != nil {
		status, payload, err := idempotency.Replay(*record)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Header(headerReplayed, "true")
		c.Data(status, jsonContentType, payload)
		return
	}

	status, payload := h.placeOrder(c, body)
	h.guard.Complete(ctx, key, status, payload)
	c.Data(status, jsonContentType, payload)
}

// placeOrder возвращает статус и готовое тело ответа, чтобы его можно было сохранить.
func (h *Handler) placeOrder(c *gin.Context, body []byte) (int, []byte) {
	var payload createOrderPayload
	if err := binding.JSON.BindBody(body, &payload); err != nil {
		return h.encode(http.StatusBadRequest, errorBody(http.StatusBadRequest, ErrMalformedBody))
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), callerFrom(c), payload.request())
	if err != nil {
		status := statusFor(err)
		h.logFailure(c, status, err)
		return h.encode(status, errorBody(status, err))
	}
	return h.encode(http.StatusCreated, newOrderResponse(order))
}

func (h *Handler) encode(status int, v any) (int, []byte) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.WithError(err).Error("failed to encode response")
		payload, _ = json.Marshal(errorBody(http.StatusInternalServerError, err))
		return http.StatusInternalServerError, payload
	}
	return status, payload
}

func (h *Handler) listOrders(c *gin.Context) {
	query, err := h.orderQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	list, err := h.orders.ListOrders(c.Request.Context(), callerFrom(c), query)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderList(list))
}

func (h *Handler) listSales(c *gin.Context) {
	list, err := h.orders.ListSales(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderList(list))
}

func (h *Handler) listOrdersByEmail(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		h.fail(c, domain.NewValidationError("email", domain.ErrInvalidFilter))
		return
	}
	list, err := h.orders.ListOrdersByEmail(c.Request.Context(), callerFrom(c), email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderList(list))
}

func (h *Handler) listMyOrders(c *gin.Context) {
	list, err := h.orders.ListUserOrders(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderList(list))
}

func (h *Handler) getOrder(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}

func (h *Handler) timeline(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	events, err := h.orders.Timeline(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTimeline(events))
}

func (h *Handler) updateOrder(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var payload updateOrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.fail(c, ErrMalformedBody)
		return
	}
	req, err := payload.request()
	if err != nil {
		h.fail(c, err)
		return
	}

	order, err := h.orders.UpdateOrder(c.Request.Context(), callerFrom(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.orders.Stats(c.Request.Context(), callerFrom(c), h.now().In(h.loc))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatsResponse(stats))
}

// orderQuery разбирает параметры GET /orders в типизированные фильтры.
func (h *Handler) orderQuery(c *gin.Context) (domain.OrderQuery, error) {
	var query domain.OrderQuery

	if v := strings.TrimSpace(c.Query("order_number")); v != "" {
		query.Filters = append(query.Filters, domain.ByOrderNumber{Number: v})
	}
	if v := strings.TrimSpace(c.Query("customer_name")); v != "" {
		query.Filters = append(query.Filters, domain.ByCustomerName{Name: v})
	}
	if v := c.Query("status"); v != "" {
		status, err := domain.ParseOrderStatus(v)
		if err != nil {
			return domain.OrderQuery{}, err
		}
		query.Filters = append(query.Filters, domain.ByStatus{Status: status})
	}
	if v := c.Query("payment_method_id"); v != "" {
		id, err := parseID("payment_method_id", v)
		if err != nil {
			return domain.OrderQuery{}, err
		}
		query.Filters = append(query.Filters, domain.ByPaymentMethod{MethodID: id})
	}
	if v := c.Query("delivery_method_id"); v != "" {
		id, err := parseID("delivery_method_id", v)
		if err != nil {
			return domain.OrderQuery{}, err
		}
		query.Filters = append(query.Filters, domain.ByDeliveryMethod{MethodID: id})
	}

	start, err := h.parseDate("start_date", c.Query("start_date"))
	if err != nil {
		return domain.OrderQuery{}, err
	}
	end, err := h.parseDate("end_date", c.Query("end_date"))
	if err != nil {
		return domain.OrderQuery{}, err
	}
	if start != nil || end != nil {
		query.Filters = append(query.Filters, domain.CreatedOnDays(start, end))
	}

	if v := strings.TrimSpace(c.Query("shop_name")); v != "" {
		query.Filters = append(query.Filters, domain.ByShopName{Name: v})
	}

	if query.Limit, err = parseCount("limit", c.Query("limit")); err != nil {
		return domain.OrderQuery{}, err
	}
	if query.Offset, err = parseCount("offset", c.Query("offset")); err != nil {
		return domain.OrderQuery{}, err
	}

	return query, query.Validate()
}

func (h *Handler) parseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, h.loc)
	if err != nil {
		return nil, domain.NewValidationError(field, domain.ErrInvalidDateRange)
	}
	return &day, nil
}

func parseID(field, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(field, domain.ErrInvalidFilter)
	}
	return id, nil
}

func parseCount(field, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(field, domain.ErrInvalidFilter)
	}
	return n, nil
}

func pathID(c *gin.Context) (int64, error) {
	return parseID("id", c.Param("id"))
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	h.logFailure(c, status, err)
	abortWithError(c, status, err)
}

func (h *Handler) logFailure(c *gin.Context, status int, err error) {
	if status < http.StatusInternalServerError {
		return
	}
	h.logger.WithError(err).WithField("route", fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())).
		Error("request handler failed")
}
