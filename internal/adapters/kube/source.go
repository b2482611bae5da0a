// Package kube reads tenant domains from CDNTenant custom resources.
package kube

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poyrazK/zonewriter/internal/core/domain"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/tools/clientcmd"
)

// TenantGVR identifies the cdntenants custom resource.
var TenantGVR = schema.GroupVersionResource{
	Group:    "cdn.cloudwm-cdn.com",
	Version:  "v1",
	Resource: "cdntenants",
}

// TenantSource implements ports.TenantSource by flattening spec.domains of
// every CDNTenant in a namespace.
type TenantSource struct {
	client    dynamic.Interface
	namespace string
	logger    *slog.Logger
}

func NewTenantSource(client dynamic.Interface, namespace string, logger *slog.Logger) *TenantSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantSource{client: client, namespace: namespace, logger: logger}
}

// NewDynamicClient builds a dynamic client from kubeconfig, falling back to
// the in-cluster configuration when kubeconfig is empty.
func NewDynamicClient(kubeconfig string) (dynamic.Interface, error) {
	restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("load kubernetes config: %w", err)
	}
	return dynamic.NewForConfig(restConfig)
}

func (s *TenantSource) ListTenantDomains(ctx context.Context) ([]domain.DomainRecord, error) {
	list, err := s.client.Resource(TenantGVR).Namespace(s.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: list cdntenants: %w", domain.ErrSourceUnavailable, err)
	}

	var records []domain.DomainRecord
	for _, item := range list.Items {
		records = append(records, s.tenantDomains(item)...)
	}
	return records, nil
}

// tenantDomains never fails: a malformed tenant contributes what it can so one
// bad resource does not block every other tenant.
func (s *TenantSource) tenantDomains(item unstructured.Unstructured) []domain.DomainRecord {
	tenantID := item.GetName()
	domains, found, err := unstructured.NestedSlice(item.Object, "spec", "domains")
	if err != nil {
		s.logger.Warn("ignoring malformed spec.domains", "tenant", tenantID, "error", err)
		return nil
	}
	if !found {
		return nil
	}

	var records []domain.DomainRecord
	for i, entry := range domains {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			s.logger.Warn("ignoring malformed domain entry", "tenant", tenantID, "index", i)
			continue
		}
		name, ok := fields["name"].(string)
		if !ok || name == "" {
			s.logger.Warn("ignoring domain entry without name", "tenant", tenantID, "index", i)
			continue
		}
		records = append(records, domain.DomainRecord{TenantID: tenantID, FQDN: name})
	}
	return records
}

// Ping checks the API server answers for the tenant resource.
func (s *TenantSource) Ping(ctx context.Context) error {
	_, err := s.client.Resource(TenantGVR).Namespace(s.namespace).List(ctx, metav1.ListOptions{Limit: 1})
	return err
}
