// Package services holds the handlers mounted by the example server.
package services

import (
	"errors"
	"strconv"
	"time"

	"github.com/searchktools/rawhttp/core/codec"
	"github.com/searchktools/rawhttp/core/http"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrUnknownAnimal is returned by Lookup for ids with no animal
var ErrUnknownAnimal = errors.New("unknown animal")

// Home answers every request with an empty 200
type Home struct{}

func (Home) Serve(req *http.Request) *http.Response {
	return http.NewResponse(http.StatusOK)
}

// DefaultSleep is how long Sleep blocks when Duration is unset
const DefaultSleep = 5 * time.Second

// Sleep holds its worker for Duration before answering 200
type Sleep struct {
	Duration time.Duration
}

func (s Sleep) Serve(req *http.Request) *http.Response {
	d := s.Duration
	if d == 0 {
		d = DefaultSleep
	}
	time.Sleep(d)
	return http.NewResponse(http.StatusOK)
}

// AnimalRequest is the body accepted by Animal. ID is required.
type AnimalRequest struct {
	ID *uint64 `json:"id"`
}

// AnimalResponse is the body returned for a known animal
type AnimalResponse struct {
	Name string `json:"name"`
}

var animals = map[uint64]string{
	1: "Dog",
	2: "Cat",
}

// Lookup returns the animal with the given id
func Lookup(id uint64) (AnimalResponse, error) {
	name, ok := animals[id]
	if !ok {
		return AnimalResponse{}, ErrUnknownAnimal
	}
	return AnimalResponse{Name: name}, nil
}

// Animal looks up the id in a JSON body
type Animal struct{}

func (Animal) Serve(req *http.Request) *http.Response {
	var body AnimalRequest
	if err := req.Bind(&body); err != nil || body.ID == nil {
		return http.NewResponse(http.StatusBadRequest)
	}
	return respondAnimal(req, *body.ID)
}

// AnimalByID looks up the {id} path parameter
type AnimalByID struct{}

func (AnimalByID) Serve(req *http.Request) *http.Response {
	id, err := strconv.ParseUint(req.Param("id"), 10, 64)
	if err != nil {
		return http.NewResponse(http.StatusBadRequest)
	}
	return respondAnimal(req, id)
}

func respondAnimal(req *http.Request, id uint64) *http.Response {
	animal, err := Lookup(id)
	if err != nil {
		return http.NewResponse(http.StatusNotFound)
	}

	if c, err := codec.ForContentType(req.Header(http.HeaderAccept)); err == nil && c == codec.Protobuf {
		msg, err := structpb.NewStruct(map[string]any{"name": animal.Name})
		if err != nil {
			return http.NewResponse(http.StatusInternalServerError)
		}
		return http.NewResponse(http.StatusOK).Proto(msg)
	}

	return http.NewResponse(http.StatusOK).JSON(animal)
}
