package kube

import (
	"context"
	"errors"
	"testing"

	"github.com/poyrazK/zonewriter/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	ktesting "k8s.io/client-go/testing"
)

func newTenant(namespace, name string, spec map[string]interface{}) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "cdn.cloudwm-cdn.com/v1",
		"kind":       "CDNTenant",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": namespace,
		},
	}}
	if spec != nil {
		obj.Object["spec"] = spec
	}
	return obj
}

func newFakeClient(objs ...runtime.Object) *dynamicfake.FakeDynamicClient {
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(
		runtime.NewScheme(),
		map[schema.GroupVersionResource]string{TenantGVR: "CDNTenantList"},
		objs...,
	)
}

func TestTenantSource_ListTenantDomains(t *testing.T) {
	client := newFakeClient(
		newTenant("cdn", "t1", map[string]interface{}{
			"domains": []interface{}{
				map[string]interface{}{"name": "a.example.com"},
			},
		}),
		newTenant("cdn", "t2", map[string]interface{}{
			"domains": []interface{}{
				map[string]interface{}{"name": "b.example.com"},
				map[string]interface{}{"name": "c.sub.example.com"},
			},
		}),
		newTenant("other", "t3", map[string]interface{}{
			"domains": []interface{}{
				map[string]interface{}{"name": "x.elsewhere.org"},
			},
		}),
	)

	src := NewTenantSource(client, "cdn", nil)
	recs, err := src.ListTenantDomains(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []domain.DomainRecord{
		{TenantID: "t1", FQDN: "a.example.com"},
		{TenantID: "t2", FQDN: "b.example.com"},
		{TenantID: "t2", FQDN: "c.sub.example.com"},
	}, recs)
}

func TestTenantSource_SkipsMalformedTenants(t *testing.T) {
	client := newFakeClient(
		newTenant("cdn", "nospec", nil),
		newTenant("cdn", "badlist", map[string]interface{}{"domains": "a.example.com"}),
		newTenant("cdn", "mixed", map[string]interface{}{
			"domains": []interface{}{
				"not-a-map",
				map[string]interface{}{"name": int64(42)},
				map[string]interface{}{},
				map[string]interface{}{"name": "ok.example.com"},
			},
		}),
	)

	recs, err := NewTenantSource(client, "cdn", nil).ListTenantDomains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.DomainRecord{{TenantID: "mixed", FQDN: "ok.example.com"}}, recs)
}

func TestTenantSource_ListError(t *testing.T) {
	client := newFakeClient()
	client.PrependReactor("list", "cdntenants", func(ktesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("apiserver unavailable")
	})

	src := NewTenantSource(client, "cdn", nil)
	_, err := src.ListTenantDomains(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	assert.Error(t, src.Ping(context.Background()))
}

func TestTenantSource_Ping(t *testing.T) {
	src := NewTenantSource(newFakeClient(), "cdn", nil)
	assert.NoError(t, src.Ping(context.Background()))
}
