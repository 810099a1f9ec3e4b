package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/relay/body"
)

type greeting struct {
	Name string `json:"name"`
}

func TestJSONBodyDecodesMatchingContentType(t *testing.T) {
	JSONBody[greeting]()

	svc := Handler(func(j JSON[greeting]) (*Response, error) {
		return NewResponse(200).SetBytes([]byte("hi " + j.Value.Name)), nil
	})

	req := &Request{Header: NewHeader(), Body: body.NewBytes([]byte(`{"name":"ada"}`))}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := svc.Serve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	data, _ := body.ReadAll(context.Background(), resp.Body)
	assert.Equal(t, "hi ada", string(data))
}

func TestJSONBodyRejectsMismatchedContentType(t *testing.T) {
	JSONBody[greeting]()

	svc := Handler(func(j JSON[greeting]) (*Response, error) {
		return NewResponse(200), nil
	})

	req := &Request{Header: NewHeader(), Body: body.NewBytes([]byte(`{"name":"ada"}`))}
	req.Header.Set("Content-Type", "text/plain")

	_, err := svc.Serve(context.Background(), req)
	require.Error(t, err)

	var he HTTPStatus
	require.ErrorAs(t, err, &he)
	assert.Equal(t, 415, he.HTTPStatus())
}

func TestFormBodyRejectsMismatchedContentType(t *testing.T) {
	type signup struct{ Email string }
	FormBody[signup]()

	svc := Handler(func(f Form[signup]) (*Response, error) {
		return NewResponse(200), nil
	})

	req := &Request{Header: NewHeader(), Body: body.NewBytes([]byte(`Email=a@example.com`))}
	req.Header.Set("Content-Type", "application/json")

	_, err := svc.Serve(context.Background(), req)
	require.Error(t, err)

	var he HTTPStatus
	require.ErrorAs(t, err, &he)
	assert.Equal(t, 415, he.HTTPStatus())
}
