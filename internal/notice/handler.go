package notice

import (
	"SmartNotice/internal/apperr"
	"SmartNotice/internal/auth"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const attachmentsField = "attachments"

type NoticeHandler struct {
	service *Service
	files   *AttachmentStore
}

func NewNoticeHandler(service *Service, files *AttachmentStore) *NoticeHandler {
	return &NoticeHandler{service: service, files: files}
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "Invalid or missing token")
	}
	return p, nil
}

// readInput accepts a JSON body or a multipart form. In a form, list and
// object fields are JSON-encoded; lists may also be comma separated.
func (h *NoticeHandler) readInput(c echo.Context) (NoticeInput, error) {
	var in NoticeInput
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err := c.Bind(&in); err != nil {
			return in, echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
		}
		return in, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return in, echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
	}
	if err := decodeForm(form.Value, &in); err != nil {
		return in, err
	}
	for _, fh := range form.File[attachmentsField] {
		a, err := h.files.SaveUpload(fh)
		if err != nil {
			h.discard(in.Attachments)
			return NoticeInput{}, err
		}
		in.Attachments = append(in.Attachments, a)
	}
	return in, nil
}

func (h *NoticeHandler) discard(attachments []Attachment) {
	for _, a := range attachments {
		_ = h.files.Remove(a)
	}
}

func decodeForm(values map[string][]string, in *NoticeInput) error {
	str := func(key string) *string {
		v, ok := values[key]
		if !ok || len(v) == 0 {
			return nil
		}
		return &v[0]
	}
	list := func(key string) (*[]string, error) {
		raw := str(key)
		if raw == nil {
			return nil, nil
		}
		out, err := parseList(*raw)
		if err != nil {
			return nil, apperr.Validation(key, "must be a JSON array of strings")
		}
		return &out, nil
	}
	boolean := func(key string) (*bool, error) {
		raw := str(key)
		if raw == nil {
			return nil, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(*raw))
		if err != nil {
			return nil, apperr.Validation(key, "must be true or false")
		}
		return &b, nil
	}

	in.Title = str("title")
	in.Subject = str("subject")
	in.Content = str("content")
	in.NoticeType = str("notice_type")
	in.Specialization = str("specialization")
	in.From = str("from")
	in.Date = str("date")
	in.Time = str("time")
	if p := str("priority"); p != nil {
		v := Priority(*p)
		in.Priority = &v
	}
	if st := str("status"); st != nil {
		v := Status(*st)
		in.Status = &v
	}

	var err error
	for key, dst := range map[string]**[]string{
		"departments":      &in.Departments,
		"courses":          &in.Courses,
		"years":            &in.Years,
		"sections":         &in.Sections,
		"recipient_emails": &in.RecipientEmails,
	} {
		if *dst, err = list(key); err != nil {
			return err
		}
	}
	if in.ScheduleDate, err = boolean("schedule_date"); err != nil {
		return err
	}
	if in.ScheduleTime, err = boolean("schedule_time"); err != nil {
		return err
	}
	if raw := str("send_options"); raw != nil {
		var opts SendOptions
		if err := json.Unmarshal([]byte(*raw), &opts); err != nil {
			return apperr.Validation("send_options", "must be a JSON object")
		}
		in.SendOptions = &opts
	}
	return nil
}

func parseList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return strings.Split(raw, ","), nil
}

func (h *NoticeHandler) Create(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	in, err := h.readInput(c)
	if err != nil {
		return err
	}
	n, err := h.service.Create(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Notice created successfully",
		"id":      n.ID.Hex(),
		"status":  n.Status,
	})
}

func (h *NoticeHandler) Update(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	in, err := h.readInput(c)
	if err != nil {
		return err
	}
	n, err := h.service.Update(c.Request().Context(), p, c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Notice updated successfully",
		"id":      n.ID.Hex(),
		"status":  n.Status,
	})
}

func (h *NoticeHandler) Delete(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), p, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Notice deleted successfully"})
}

func (h *NoticeHandler) Get(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	v, err := h.service.Get(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *NoticeHandler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	views, err := h.service.List(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

func (h *NoticeHandler) ListByCreator(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListByCreator(c.Request().Context(), p, c.Param("userId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

func (h *NoticeHandler) MarkRead(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	res, err := h.service.MarkRead(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	msg := "Read timestamp updated"
	if res.IsNewRead {
		msg = "First read recorded"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":   msg,
		"isNewRead": res.IsNewRead,
	})
}

func (h *NoticeHandler) Receipts(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	r, err := h.service.Receipts(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *NoticeHandler) Analytics(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	a, err := h.service.Analytics(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *NoticeHandler) Summary(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	s, err := h.service.Summary(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}
