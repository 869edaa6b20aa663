package k8s

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/opsremedy/remedy-controller/internal/logic/controller"
)

const (
	restartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

	maxEventsPerPod = 10
)

type adapter struct {
	logger           *slog.Logger
	clientset        kubernetes.Interface
	metricsClientset metricsv.Interface
}

// New creates a new K8s adapter implementing the controller's Repository port.
func New(
	logger *slog.Logger,
	clientset kubernetes.Interface,
	metricsClientset metricsv.Interface,
) controller.Repository {
	return &adapter{
		logger:           logger,
		clientset:        clientset,
		metricsClientset: metricsClientset,
	}
}

var _ controller.Repository = (*adapter)(nil)

func (a *adapter) ListPodsQuery(ctx context.Context, namespace string) ([]controller.PodStatus, error) {
	podList, err := a.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", classify(err))
	}

	pods := make([]controller.PodStatus, 0, len(podList.Items))
	for i := range podList.Items {
		pods = append(pods, toPodStatus(&podList.Items[i]))
	}

	return pods, nil
}

func (a *adapter) GetPodLogsQuery(ctx context.Context, namespace, name string, tailLines int64) (string, error) {
	req := a.clientset.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{
		TailLines: &tailLines,
	})

	stream, err := req.Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("stream pod logs: %w", classify(err))
	}
	defer stream.Close()

	logs, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("read pod logs: %w", err)
	}

	return string(logs), nil
}

func (a *adapter) ListPodEventsQuery(ctx context.Context, namespace, name string) ([]controller.Event, error) {
	selector := fmt.Sprintf("involvedObject.kind=Pod,involvedObject.name=%s", name)

	eventList, err := a.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("list pod events: %w", classify(err))
	}

	items := eventList.Items
	if len(items) > maxEventsPerPod {
		items = items[len(items)-maxEventsPerPod:]
	}

	events := make([]controller.Event, 0, len(items))
	for i := range items {
		events = append(events, toEvent(&items[i]))
	}

	return events, nil
}

func (a *adapter) GetPodMemoryUsageQuery(ctx context.Context, namespace, name string) (string, error) {
	podMetrics, err := a.metricsClientset.MetricsV1beta1().PodMetricses(namespace).Get(
		ctx,
		name,
		metav1.GetOptions{},
	)
	if err != nil {
		return "", fmt.Errorf("get pod metrics: %w", classify(err))
	}

	return sumMemoryUsage(podMetrics), nil
}

// ResolveDeploymentQuery walks pod -> ReplicaSet -> Deployment owner
// references. When ownership cannot be resolved, the replicaset and pod hash
// suffixes are stripped from the pod name as a last resort.
func (a *adapter) ResolveDeploymentQuery(ctx context.Context, namespace, podName string) (string, error) {
	pod, err := a.clientset.CoreV1().Pods(namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return trimPodName(podName), nil
		}

		return "", fmt.Errorf("get pod: %w", classify(err))
	}

	for _, owner := range pod.OwnerReferences {
		if owner.Kind != "ReplicaSet" {
			continue
		}

		rs, err := a.clientset.AppsV1().ReplicaSets(namespace).Get(ctx, owner.Name, metav1.GetOptions{})
		if err != nil {
			a.logger.WarnContext(ctx, "could not read owning replicaset",
				"pod", podName, "replicaset", owner.Name, "reason", err)

			continue
		}

		for _, rsOwner := range rs.OwnerReferences {
			if rsOwner.Kind == "Deployment" {
				return rsOwner.Name, nil
			}
		}
	}

	return trimPodName(podName), nil
}

func (a *adapter) GetDeploymentLimitsQuery(
	ctx context.Context,
	namespace,
	name string,
) (*controller.DeploymentLimits, error) {
	deployment, err := a.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get deployment: %w", classify(err))
	}

	return toDeploymentLimits(deployment), nil
}

func (a *adapter) GetDeploymentReplicasQuery(ctx context.Context, namespace, name string) (int32, error) {
	scale, err := a.clientset.AppsV1().Deployments(namespace).GetScale(ctx, name, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("get deployment scale: %w", classify(err))
	}

	return scale.Spec.Replicas, nil
}

// SetDeploymentLimitsCommand applies the limits (and matching requests) to
// every container in the deployment, read-modify-write.
func (a *adapter) SetDeploymentLimitsCommand(
	ctx context.Context,
	namespace,
	name string,
	limits controller.DeploymentLimits,
) error {
	deployments := a.clientset.AppsV1().Deployments(namespace)

	deployment, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("get deployment: %w", classify(err))
	}

	for i := range deployment.Spec.Template.Spec.Containers {
		applyLimits(&deployment.Spec.Template.Spec.Containers[i], limits)
	}

	if _, err := deployments.Update(ctx, deployment, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update deployment: %w", classify(err))
	}

	return nil
}

func (a *adapter) RestartDeploymentCommand(
	ctx context.Context,
	namespace,
	name string,
	restartedAt time.Time,
) error {
	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]string{
						restartedAtAnnotation: restartedAt.UTC().Format(time.RFC3339),
					},
				},
			},
		},
	}

	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal restart patch: %w", err)
	}

	_, err = a.clientset.AppsV1().Deployments(namespace).Patch(
		ctx,
		name,
		types.StrategicMergePatchType,
		patchBytes,
		metav1.PatchOptions{},
	)
	if err != nil {
		return fmt.Errorf("patch deployment: %w", classify(err))
	}

	return nil
}

func (a *adapter) ScaleDeploymentCommand(ctx context.Context, namespace, name string, replicas int32) error {
	patch := map[string]any{
		"spec": map[string]any{
			"replicas": replicas,
		},
	}

	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal scale patch: %w", err)
	}

	_, err = a.clientset.AppsV1().Deployments(namespace).Patch(
		ctx,
		name,
		types.MergePatchType,
		patchBytes,
		metav1.PatchOptions{},
	)
	if err != nil {
		return fmt.Errorf("patch deployment scale: %w", classify(err))
	}

	return nil
}

// DeletePodCommand deletes the pod only if its UID still matches the identity
// captured at detection time.
func (a *adapter) DeletePodCommand(ctx context.Context, namespace, name, uid string) error {
	opts := metav1.DeleteOptions{}
	if uid != "" {
		typedUID := types.UID(uid)
		opts.Preconditions = &metav1.Preconditions{UID: &typedUID}
	}

	err := a.clientset.CoreV1().Pods(namespace).Delete(ctx, name, opts)
	if err != nil {
		return fmt.Errorf("delete pod: %w", classify(err))
	}

	return nil
}

// classify maps API-server errors onto the marker errors the domain layer
// understands.
func classify(err error) error {
	switch {
	case apierrors.IsUnauthorized(err) || apierrors.IsForbidden(err):
		return fmt.Errorf("%w: %w", errUnauthorized, err)
	case apierrors.IsNotFound(err):
		return errPodNotFound
	case apierrors.IsTooManyRequests(err):
		return errTooManyRequests
	default:
		return err
	}
}

// trimPodName strips the replicaset and pod hash suffixes
// (e.g. web-7d4b9c-x2x9f -> web).
func trimPodName(podName string) string {
	parts := strings.Split(podName, "-")
	if len(parts) > 2 {
		return strings.Join(parts[:len(parts)-2], "-")
	}

	return podName
}
