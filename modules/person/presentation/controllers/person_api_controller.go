package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/form"
	"github.com/gorilla/mux"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/modules/person/presentation/viewmodels"
	"github.com/jacksonlee411/grc-console/modules/person/services"
	"github.com/jacksonlee411/grc-console/pkg/application"
	"github.com/jacksonlee411/grc-console/pkg/constants"
	"github.com/jacksonlee411/grc-console/pkg/eventbus"
	"github.com/jacksonlee411/grc-console/pkg/httpapi"
	"github.com/jacksonlee411/grc-console/pkg/intl"
	"github.com/jacksonlee411/grc-console/pkg/middleware"
)

type PersonAPIController struct {
	app      application.Application
	persons  *services.PersonService
	decoder  *form.Decoder
	basePath string
}

func NewPersonAPIController(app application.Application) application.Controller {
	return &PersonAPIController{
		app:      app,
		persons:  app.Service(services.PersonService{}).(*services.PersonService),
		decoder:  form.NewDecoder(),
		basePath: "/person/api",
	}
}

func (c *PersonAPIController) Key() string {
	return c.basePath
}

func (c *PersonAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.ProvideLocalizer(c.app))
	router.HandleFunc("/persons:options", c.Options).Methods(http.MethodGet)
	router.HandleFunc("/fields/{fieldID:[0-9]+}", c.UpdateField).Methods(http.MethodPost)
}

type personOption struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (c *PersonAPIController) Options(w http.ResponseWriter, r *http.Request) {
	limit := services.DefaultOptionsLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= services.MaxOptionsLimit {
			limit = parsed
		}
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	people, err := c.persons.Options(r.Context(), q, limit)
	if err != nil {
		middleware.UseLogger(r.Context()).WithError(err).Error("person options failed")
		writeAPIError(w, r, http.StatusBadGateway, "PERSON_UPSTREAM", localize(r.Context(), "Person.Errors.Query", "person lookup failed"))
		return
	}

	out := make([]personOption, 0, len(people))
	for _, p := range people {
		out = append(out, personOption{ID: p.ID, Name: p.DisplayName(), Email: p.Email})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": out,
	})
}

// FieldUpdateDTO is the form posted by the person picker. Value is the value
// the form currently holds; PersonID is the user's pick, Unset clears it.
type FieldUpdateDTO struct {
	Value       *int64 `form:"value"`
	PersonID    int64  `form:"person_id" validate:"required_without=Unset,gte=0"`
	Unset       bool   `form:"unset"`
	WithDetails bool   `form:"with_details"`
}

// UpdateField replays a user pick on the field and reports the change event
// it produced, if any.
func (c *PersonAPIController) UpdateField(w http.ResponseWriter, r *http.Request) {
	fieldID, err := strconv.ParseInt(mux.Vars(r)["fieldID"], 10, 64)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PERSON_INVALID_FIELD", "invalid field id")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PERSON_INVALID_FORM", localize(r.Context(), "Person.Errors.InvalidForm", "invalid form"))
		return
	}
	var dto FieldUpdateDTO
	if err := c.decoder.Decode(&dto, r.PostForm); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PERSON_INVALID_FORM", localize(r.Context(), "Person.Errors.InvalidForm", "invalid form"))
		return
	}
	if err := constants.Validate.Struct(dto); err != nil {
		meta := map[string]string{"request_id": httpapi.RequestID(w, r)}
		for field, msg := range intl.ValidationErrors(r.Context(), err) {
			meta["field."+field] = msg
		}
		if werr := httpapi.WriteError(w, http.StatusUnprocessableEntity, "PERSON_VALIDATION_FAILED",
			localize(r.Context(), "Person.Errors.PersonRequired", "person_id is required"), meta); werr != nil {
			panic(werr)
		}
		return
	}

	bus := eventbus.NewEventPublisher(c.app.Logger())
	var changed *viewmodels.ValueChanged
	bus.Subscribe(func(e *viewmodels.ValueChanged) { changed = e })

	field := viewmodels.NewPersonFormField(fieldID, dto.WithDetails, bus)
	if dto.Value != nil || r.PostForm.Has("value") {
		field.SetValue(dto.Value)
	}
	if dto.Unset {
		field.UnsetPerson()
	} else {
		field.SetPerson(&instance.Instance{ID: dto.PersonID, Type: instance.TypePerson})
	}

	resp := map[string]any{
		"field":        field.State(),
		"valueChanged": nil,
	}
	if changed != nil {
		resp["valueChanged"] = map[string]any{"fieldId": changed.FieldID, "value": changed.Value}
	}
	writeJSON(w, http.StatusOK, resp)
}
