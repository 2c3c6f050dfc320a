package backend

import (
	"context"
	"net/http"
	"net/url"
)

// GetPeople lists detectable people, all of them when ids is empty
func (c *Client) GetPeople(ctx context.Context, ids []string) ([]Person, error) {
	var resp struct {
		People []Person `json:"people"`
	}
	if err := c.get(ctx, "/api/people", idsQuery("ids", ids), &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.People), nil
}

// GetPersonImage returns a presigned URL for a person's reference image
func (c *Client) GetPersonImage(ctx context.Context, personID string) (*PersonImage, error) {
	var image PersonImage
	query := url.Values{"id": []string{personID}}
	if err := c.get(ctx, "/api/people/presigned", query, &image); err != nil {
		return nil, err
	}
	return &image, nil
}

// AddPerson uploads a detectable person and returns the new id
func (c *Client) AddPerson(ctx context.Context, req AddPersonRequest) (string, error) {
	c.logger.Debug("Adding person", "request", req.String())

	var resp AddPersonResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/people", body: req}, &resp); err != nil {
		return "", err
	}
	return resp.PersonID, nil
}

// DeletePerson removes a detectable person
func (c *Client) DeletePerson(ctx context.Context, personID string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/people",
		query:  url.Values{"id": []string{personID}},
	}, nil)
}

// GetPersonHistory lists history entries for the given people, all entries when personIDs is empty
func (c *Client) GetPersonHistory(ctx context.Context, personIDs []string) ([]PersonHistory, error) {
	var resp struct {
		Histories []PersonHistory `json:"histories"`
	}
	if err := c.get(ctx, "/api/people/history", idsQuery("person_id", personIDs), &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Histories), nil
}
